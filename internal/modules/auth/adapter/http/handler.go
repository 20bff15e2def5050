package http

import (
	"net/http"
	"time"

	"github.com/frankieli/base_tombala/internal/modules/auth/usecase"
	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/frankieli/base_tombala/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the auth module
type Handler struct {
	svc      *usecase.AuthUseCase
	devLogin bool
}

// NewHandler creates a new HTTP handler. devLogin enables minting tokens
// for any address without a wallet signature.
func NewHandler(svc *usecase.AuthUseCase, devLogin bool) *Handler {
	return &Handler{
		svc:      svc,
		devLogin: devLogin,
	}
}

// RegisterRoutes registers all auth routes to the given router group
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	if h.devLogin {
		router.POST("/token", h.DevToken)
	}
	router.POST("/logout", h.Logout)
}

type tokenRequest struct {
	Address string `json:"address" binding:"required"`
}

type tokenResponse struct {
	Address   string `json:"address"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// DevToken mints a token for the posted address
func (h *Handler) DevToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	player, err := domain.ParseAddress(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, expiresAt, err := h.svc.IssueToken(c.Request.Context(), player)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Msg("DevToken: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
		return
	}

	logger.Info(c.Request.Context()).Str("player", player.String()).Msg("DevToken: issued")

	c.JSON(http.StatusOK, tokenResponse{
		Address:   player.String(),
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

// Logout revokes the bearer token
func (h *Handler) Logout(c *gin.Context) {
	token := BearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.svc.Logout(c.Request.Context(), token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
