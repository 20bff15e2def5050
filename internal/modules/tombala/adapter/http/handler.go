package http

import (
	"errors"
	"net/http"
	"strconv"

	authhttp "github.com/frankieli/base_tombala/internal/modules/auth/adapter/http"
	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/frankieli/base_tombala/internal/modules/tombala/usecase"
	"github.com/frankieli/base_tombala/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the tombala module
type Handler struct {
	uc         *usecase.TombalaUseCase
	tokens     authhttp.TokenValidator
	cronSecret string
}

// NewHandler creates a new HTTP handler
func NewHandler(uc *usecase.TombalaUseCase, tokens authhttp.TokenValidator, cronSecret string) *Handler {
	return &Handler{
		uc:         uc,
		tokens:     tokens,
		cronSecret: cronSecret,
	}
}

// RegisterRoutes registers all tombala routes to the given /api group
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	game := router.Group("/game")
	game.GET("/stats", h.GetStats)
	game.GET("/current-id", h.GetCurrentGameID)
	game.GET("/active", h.GetIsActive)
	game.GET("/pot", h.GetTotalPot)
	game.GET("/remaining-time", h.GetRemainingTime)
	game.GET("/filled-numbers", h.GetFilledNumbers)
	game.GET("/snapshot", h.GetSnapshot)
	game.GET("/constants", h.GetConstants)
	game.GET("/numbers/:number/owner", h.GetNumberOwner)

	players := router.Group("/players/:address")
	players.GET("/bet-status", h.GetBetStatus)
	players.GET("/numbers", h.GetPlayerNumbers)
	players.GET("/balance", h.GetBalance)

	router.GET("/games", h.GetGames)

	cron := router.Group("/cron", authhttp.RequireCronSecret(h.cronSecret))
	cron.GET("", h.RunCron)
	cron.POST("", h.RunCron)

	writes := router.Group("", authhttp.RequirePlayer(h.tokens))
	writes.POST("/bets", h.PlaceBet)
	writes.POST("/draw", h.DrawWinner)
	writes.POST("/games/new", h.StartNewGame)
	writes.POST("/admin/emergency-withdraw", h.EmergencyWithdraw)
}

// DTOs
type placeBetRequest struct {
	Number *int   `json:"number" binding:"required"`
	Value  string `json:"value"` // wei; defaults to the bet price
}

type placeBetResponse struct {
	*domain.Receipt
	BetID  string `json:"betId"`
	Number int    `json:"number"`
}

type drawResponse struct {
	*domain.Receipt
	WinningNumber int            `json:"winningNumber"`
	Winner        domain.Address `json:"winner"`
	Prize         string         `json:"prize"`
	TotalBets     int            `json:"totalBets"`
}

type withdrawResponse struct {
	*domain.Receipt
	Amount string `json:"amount"`
}

// respondError maps lifecycle errors onto status codes
func respondError(c *gin.Context, op string, err error) {
	ctx := c.Request.Context()

	if ce, ok := domain.AsContractError(err); ok {
		logger.Warn(ctx).Str("op", op).Str("revert", ce.Name).Msg("request reverted")
		c.JSON(http.StatusBadRequest, gin.H{"error": ce.Name, "details": err.Error()})
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidAddress), errors.Is(err, domain.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad request", "details": err.Error()})
	case errors.Is(err, domain.ErrGameNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
	default:
		logger.Error(ctx).Err(err).Str("op", op).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
	}
}

func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.uc.Stats(c.Request.Context()))
}

func (h *Handler) GetCurrentGameID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"gameId": h.uc.CurrentGameID(c.Request.Context())})
}

func (h *Handler) GetIsActive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"isActive": h.uc.IsGameActive(c.Request.Context())})
}

func (h *Handler) GetTotalPot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pot": h.uc.TotalPot(c.Request.Context())})
}

func (h *Handler) GetRemainingTime(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"timeLeft": h.uc.RemainingTime(c.Request.Context())})
}

func (h *Handler) GetFilledNumbers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"numbers": h.uc.FilledNumbers(c.Request.Context())})
}

func (h *Handler) GetSnapshot(c *gin.Context) {
	snap, err := h.uc.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, "snapshot", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) GetConstants(c *gin.Context) {
	c.JSON(http.StatusOK, h.uc.Constants(c.Request.Context()))
}

func (h *Handler) GetNumberOwner(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad request", "details": "number must be an integer"})
		return
	}

	owner, err := h.uc.NumberOwner(c.Request.Context(), number)
	if err != nil {
		respondError(c, "number_owner", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"number": number, "owner": owner})
}

func (h *Handler) playerParam(c *gin.Context) (domain.Address, bool) {
	addr, err := domain.ParseAddress(c.Param("address"))
	if err != nil {
		respondError(c, "parse_address", err)
		return "", false
	}
	return addr, true
}

func (h *Handler) GetBetStatus(c *gin.Context) {
	addr, ok := h.playerParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "hasBet": h.uc.HasPlayerBet(c.Request.Context(), addr)})
}

func (h *Handler) GetPlayerNumbers(c *gin.Context) {
	addr, ok := h.playerParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "numbers": h.uc.PlayerNumbers(c.Request.Context(), addr)})
}

func (h *Handler) GetBalance(c *gin.Context) {
	addr, ok := h.playerParam(c)
	if !ok {
		return
	}
	balance, err := h.uc.Balance(c.Request.Context(), addr)
	if err != nil {
		respondError(c, "balance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "balance": balance})
}

// GetGames serves one verified record with ?gameId= or the recent winners
// otherwise
func (h *Handler) GetGames(c *gin.Context) {
	ctx := c.Request.Context()

	if raw := c.Query("gameId"); raw != "" {
		gameID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Bad request", "details": "gameId must be an integer"})
			return
		}

		record, err := h.uc.VerifyGame(ctx, gameID)
		if errors.Is(err, domain.ErrGameNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not found", "gameId": gameID})
			return
		}
		if err != nil {
			respondError(c, "game_record", err)
			return
		}
		c.JSON(http.StatusOK, record)
		return
	}

	limit := usecase.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Bad request", "details": "limit must be an integer"})
			return
		}
		limit = n
	}

	page, err := h.uc.ListGames(ctx, limit)
	if err != nil {
		respondError(c, "list_games", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// RunCron fires the draw trigger
func (h *Handler) RunCron(c *gin.Context) {
	result, err := h.uc.RunDrawTrigger(c.Request.Context())
	if err != nil {
		respondError(c, "cron", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) PlaceBet(c *gin.Context) {
	player, _ := authhttp.PlayerFromContext(c)

	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad request", "details": err.Error()})
		return
	}

	value := h.uc.Constants(c.Request.Context()).BetPrice
	if req.Value != "" {
		v, err := domain.ParseWei(req.Value)
		if err != nil {
			respondError(c, "place_bet", err)
			return
		}
		value = v
	}

	receipt, bet, err := h.uc.PlaceBet(c.Request.Context(), player, *req.Number, value)
	if err != nil {
		respondError(c, "place_bet", err)
		return
	}

	c.JSON(http.StatusOK, placeBetResponse{
		Receipt: receipt,
		BetID:   bet.BetID,
		Number:  bet.Number,
	})
}

func (h *Handler) DrawWinner(c *gin.Context) {
	receipt, record, err := h.uc.DrawWinner(c.Request.Context())
	if err != nil {
		respondError(c, "draw", err)
		return
	}

	c.JSON(http.StatusOK, drawResponse{
		Receipt:       receipt,
		WinningNumber: record.WinningNumber,
		Winner:        record.Winner,
		Prize:         record.Prize.String(),
		TotalBets:     record.TotalBets,
	})
}

func (h *Handler) StartNewGame(c *gin.Context) {
	receipt, _, err := h.uc.StartNewGame(c.Request.Context())
	if err != nil {
		respondError(c, "start_new_game", err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *Handler) EmergencyWithdraw(c *gin.Context) {
	caller, _ := authhttp.PlayerFromContext(c)

	receipt, amount, err := h.uc.EmergencyWithdraw(c.Request.Context(), caller)
	if err != nil {
		respondError(c, "emergency_withdraw", err)
		return
	}

	logger.Info(c.Request.Context()).Str("amount", amount.String()).Msg("emergency withdraw")
	c.JSON(http.StatusOK, withdrawResponse{Receipt: receipt, Amount: amount.String()})
}
