// Package local provides local adapters for the gateway module.
package local

import (
	"context"
	"encoding/json"

	"github.com/frankieli/base_tombala/internal/modules/gateway/domain"
	"github.com/frankieli/base_tombala/internal/modules/gateway/usecase"
	"github.com/frankieli/base_tombala/pkg/logger"
)

// Broadcaster turns lifecycle events into socket envelopes. It implements
// the tombala domain.Broadcaster.
type Broadcaster struct {
	gatewayBroadcaster domain.GatewayBroadcaster
}

func NewBroadcaster(gatewayBroadcaster domain.GatewayBroadcaster) *Broadcaster {
	return &Broadcaster{
		gatewayBroadcaster: gatewayBroadcaster,
	}
}

func (b *Broadcaster) convertEvent(gameCode, command string, data interface{}) []byte {
	msg, err := json.Marshal(usecase.Envelope{
		Game:    gameCode,
		Command: command,
		Data:    data,
	})
	if err != nil {
		logger.Error(context.Background()).Err(err).Str("command", command).Msg("event encode failed")
		return nil
	}
	return msg
}

func (b *Broadcaster) Broadcast(gameCode string, command string, data interface{}) {
	if msg := b.convertEvent(gameCode, command, data); msg != nil {
		b.gatewayBroadcaster.Broadcast(msg)
	}
}

func (b *Broadcaster) SendToPlayer(player string, gameCode string, command string, data interface{}) {
	if msg := b.convertEvent(gameCode, command, data); msg != nil {
		b.gatewayBroadcaster.SendToPlayer(player, msg)
	}
}
