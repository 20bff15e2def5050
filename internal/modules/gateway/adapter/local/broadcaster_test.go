package local

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	mu        sync.Mutex
	broadcast [][]byte
	toPlayer  map[string][][]byte
}

func (c *captured) Broadcast(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcast = append(c.broadcast, message)
}

func (c *captured) SendToPlayer(player string, message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.toPlayer == nil {
		c.toPlayer = make(map[string][][]byte)
	}
	c.toPlayer[player] = append(c.toPlayer[player], message)
}

func TestBroadcasterWrapsEventsInEnvelope(t *testing.T) {
	sink := &captured{}
	b := NewBroadcaster(sink)

	b.Broadcast("tombala", "bet_placed", map[string]interface{}{"gameId": 3, "number": 7})

	require.Len(t, sink.broadcast, 1)
	var msg struct {
		Game    string                 `json:"game"`
		Command string                 `json:"command"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(sink.broadcast[0], &msg))
	assert.Equal(t, "tombala", msg.Game)
	assert.Equal(t, "bet_placed", msg.Command)
	assert.Equal(t, float64(7), msg.Data["number"])
}

func TestBroadcasterSendToPlayer(t *testing.T) {
	sink := &captured{}
	b := NewBroadcaster(sink)

	b.SendToPlayer("0xabc", "tombala", "prize", map[string]string{"amount": "1"})
	assert.Len(t, sink.toPlayer["0xabc"], 1)
	assert.Empty(t, sink.broadcast)
}

func TestBroadcasterDropsUnencodable(t *testing.T) {
	sink := &captured{}
	NewBroadcaster(sink).Broadcast("tombala", "bad", make(chan int))
	assert.Empty(t, sink.broadcast)
}
