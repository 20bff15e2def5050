package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/frankieli/base_tombala/internal/modules/gateway/usecase"
	"github.com/frankieli/base_tombala/internal/modules/gateway/ws"
	tombala "github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/frankieli/base_tombala/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// TokenValidator resolves an optional player token
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (tombala.Address, error)
}

// Handler handles WebSocket requests
type Handler struct {
	useCase *usecase.GatewayUseCase
	manager *ws.Manager
	tokens  TokenValidator
}

// NewHandler creates a new HTTP handler
func NewHandler(useCase *usecase.GatewayUseCase, manager *ws.Manager, tokens TokenValidator) *Handler {
	return &Handler{
		useCase: useCase,
		manager: manager,
		tokens:  tokens,
	}
}

// RegisterRoutes registers the event stream route
func (h *Handler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/ws", func(c *gin.Context) {
		h.HandleWebSocket(c.Writer, c.Request)
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the stream is public and read-only
	},
}

// HandleWebSocket upgrades the request to an event stream. A ?token= is
// optional; when present it must be valid and tags the socket with the
// player's address.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WebSocketContext(r)
	connID := logger.GetRequestID(ctx)

	var player string
	if token := r.URL.Query().Get("token"); token != "" {
		addr, err := h.tokens.ValidateToken(r.Context(), token)
		if err != nil {
			logger.Warn(ctx).Err(err).Msg("ws token rejected")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		player = addr.String()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("ws upgrade failed")
		return
	}

	logger.Info(ctx).
		Str("remote_addr", r.RemoteAddr).
		Str("player", player).
		Msg("ws connection established")

	client := h.manager.Register(conn, connID, player)

	go client.WritePump()
	go client.ReadPump(func(c *ws.Connection, message []byte) {
		msgCtx := logger.WithRequestID(context.Background(), logger.GenerateRequestID())
		msgCtx = logger.WithFields(msgCtx, map[string]interface{}{
			"conn_id": c.ID,
			"player":  c.Player,
		})

		response, err := h.useCase.HandleMessage(msgCtx, c.Player, message)
		if err != nil {
			logger.Warn(msgCtx).Err(err).Msg("ws message failed")

			errorResp, _ := json.Marshal(usecase.Envelope{
				Game:    "tombala",
				Command: "error",
				Data:    map[string]string{"error": err.Error()},
			})
			h.manager.SendTo(c.ID, errorResp)
			return
		}
		if response != nil {
			h.manager.SendTo(c.ID, response)
		}
	})
}
