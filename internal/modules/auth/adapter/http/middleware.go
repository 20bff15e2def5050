package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/frankieli/base_tombala/pkg/logger"
	"github.com/gin-gonic/gin"
)

const playerKey = "player"

// TokenValidator resolves a bearer token to a player
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (domain.Address, error)
}

// BearerToken extracts the token from "Authorization: Bearer <token>"
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// RequirePlayer rejects requests without a valid player token and stores
// the player's address on the context
func RequirePlayer(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		player, err := tokens.ValidateToken(c.Request.Context(), token)
		if err != nil {
			logger.Warn(c.Request.Context()).Err(err).Msg("player token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(playerKey, player)
		c.Request = c.Request.WithContext(logger.WithFields(c.Request.Context(), map[string]interface{}{
			"player": player.String(),
		}))
		c.Next()
	}
}

// PlayerFromContext returns the address set by RequirePlayer
func PlayerFromContext(c *gin.Context) (domain.Address, bool) {
	v, ok := c.Get(playerKey)
	if !ok {
		return "", false
	}
	player, ok := v.(domain.Address)
	return player, ok
}

// RequireCronSecret accepts only "Authorization: Bearer <secret>". An empty
// secret rejects everything.
func RequireCronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			logger.Warn(c.Request.Context()).Str("ip", c.ClientIP()).Msg("cron request rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
