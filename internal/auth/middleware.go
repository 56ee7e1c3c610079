package auth

import (
	"net/http"
	"strings"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const ContextKeyUser = "huddle_user"

// BearerToken extracts the token from the Authorization header, falling back
// to the token query parameter browsers use for websocket upgrades.
func BearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q, true
	}
	return "", false
}

// Middleware rejects requests without a valid token and stores the user in the context.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := BearerToken(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		user, err := Parse(secret, raw)
		if err != nil {
			log.Warn().Err(err).Str("module", "auth").Str("path", c.Request.URL.Path).Msg("rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// UserFrom returns the authenticated user set by Middleware.
func UserFrom(c *gin.Context) (domain.User, bool) {
	v, ok := c.Get(ContextKeyUser)
	if !ok {
		return domain.User{}, false
	}
	u, ok := v.(domain.User)
	return u, ok
}
