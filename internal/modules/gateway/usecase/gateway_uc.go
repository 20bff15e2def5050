// Package usecase implements the business logic for the gateway module.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/frankieli/base_tombala/internal/modules/gateway/domain"
	tombala "github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/frankieli/base_tombala/pkg/logger"
)

const gameCode = "tombala"

// GatewayUseCase answers requests sent over the event stream. Writes stay
// on the HTTP API; the socket only reads.
type GatewayUseCase struct {
	game domain.GameService
}

// NewGatewayUseCase creates a new gateway use case
func NewGatewayUseCase(game domain.GameService) *GatewayUseCase {
	return &GatewayUseCase{
		game: game,
	}
}

// RequestEnvelope defines the standard request structure
type RequestEnvelope struct {
	Game    string          `json:"game"`
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data"`
}

// Envelope is what is written to sockets, both replies and pushes
type Envelope struct {
	Game    string      `json:"game"`
	Command string      `json:"command"`
	Data    interface{} `json:"data"`
}

// HandleMessage answers one request. player is empty for anonymous sockets.
func (uc *GatewayUseCase) HandleMessage(ctx context.Context, player string, message []byte) ([]byte, error) {
	var req RequestEnvelope
	if err := json.Unmarshal(message, &req); err != nil {
		return nil, fmt.Errorf("invalid message format: %w", err)
	}

	if req.Game == "" || req.Command == "" {
		return nil, fmt.Errorf("missing game or command")
	}
	if req.Game != gameCode {
		return nil, fmt.Errorf("unknown game: %s", req.Game)
	}

	switch req.Command {
	case "ping":
		return json.Marshal(Envelope{Game: gameCode, Command: "pong"})

	case "get_snapshot":
		snap, err := uc.game.Snapshot(ctx)
		if err != nil {
			logger.Error(ctx).Err(err).Str("command", req.Command).Msg("snapshot failed")
			return nil, err
		}
		return json.Marshal(Envelope{Game: gameCode, Command: "snapshot", Data: snap})

	case "get_stats":
		return json.Marshal(Envelope{Game: gameCode, Command: "stats", Data: uc.game.Stats(ctx)})

	case "get_my_numbers":
		if player == "" {
			return nil, fmt.Errorf("get_my_numbers requires a player token")
		}
		numbers := uc.game.PlayerNumbers(ctx, tombala.Address(player))
		return json.Marshal(Envelope{Game: gameCode, Command: "my_numbers", Data: map[string]interface{}{
			"player":  player,
			"numbers": numbers,
		}})

	default:
		return nil, fmt.Errorf("unknown command: %s", req.Command)
	}
}
