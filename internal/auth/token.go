// Package auth issues and verifies the HMAC bearer tokens huddle clients
// present to the relay.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const Issuer = "huddle"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoSubject    = errors.New("token missing user identity")
)

type Claims struct {
	Sub  string `json:"sub"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for user valid for ttl.
func Issue(secret string, user domain.User, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("empty signing secret")
	}
	now := time.Now()
	claims := Claims{
		Sub:  user.ID.String(),
		Name: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns the user it names.
func Parse(secret, raw string) (domain.User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(Issuer))
	if err != nil || !token.Valid {
		return domain.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := domain.ParseUserID(claims.Sub)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrNoSubject, err)
	}
	name := claims.Name
	if name == "" {
		name = id.String()
	}
	return domain.User{ID: id, Username: name}, nil
}

// Subject reads the user id from raw without verifying the signature.
// Clients use it to learn their own identity from a token the relay issued.
func Subject(raw string) (domain.UserID, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := domain.ParseUserID(claims.Sub)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSubject, err)
	}
	return id, nil
}
