package domain

import (
	"context"

	tombala "github.com/frankieli/base_tombala/internal/modules/tombala/domain"
)

// GameService is what the event stream can answer on request
type GameService interface {
	Snapshot(ctx context.Context) (*tombala.Snapshot, error)
	Stats(ctx context.Context) tombala.GameStats
	PlayerNumbers(ctx context.Context, player tombala.Address) []int
}

// GatewayBroadcaster defines the interface for pushing messages to sockets
type GatewayBroadcaster interface {
	// SendToPlayer sends a message to every socket of a player
	SendToPlayer(player string, message []byte)

	// Broadcast sends a message to all sockets
	Broadcast(message []byte)
}
