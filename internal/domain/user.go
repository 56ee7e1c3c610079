// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 36
)

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

type UserID string

func (id UserID) String() string { return string(id) }

// Less orders ids lexicographically. Used as the glare tie-break.
func (id UserID) Less(other UserID) bool {
	return strings.Compare(string(id), string(other)) < 0
}

type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username,omitempty"`
}

// ParseUserID validates an id coming from a token or the wire.
func ParseUserID(raw string) (UserID, error) {
	if len(raw) == 0 {
		return "", ErrUserIDEmpty
	}
	if len(raw) > MaxUserIDLen {
		return "", ErrUserIDTooLong
	}
	return UserID(raw), nil
}
