package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the denormalized view pushed after every lifecycle event
type Snapshot struct {
	GameID        int64           `json:"gameId"`
	Drawn         bool            `json:"drawn"`
	Pot           decimal.Decimal `json:"pot"`
	BetsCount     int             `json:"betsCount"`
	EndsAt        time.Time       `json:"endsAt"`
	FilledNumbers []int           `json:"filledNumbers"`
	LastEvent     string          `json:"lastEvent"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// IsActive derives the active flag at now rather than trusting a stored value
func (s *Snapshot) IsActive(now time.Time) bool {
	return !s.Drawn && now.Before(s.EndsAt)
}

// TimeLeft is the remaining betting window in whole seconds
func (s *Snapshot) TimeLeft(now time.Time) int64 {
	if !s.IsActive(now) {
		return 0
	}
	return int64(s.EndsAt.Sub(now) / time.Second)
}

// Receipt stands in for a mined transaction
type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	GameID          int64  `json:"gameId"`
}

// Broadcaster pushes lifecycle events to connected clients
type Broadcaster interface {
	Broadcast(gameCode string, command string, data interface{})
	// SendToPlayer reaches only the sockets opened with player's token
	SendToPlayer(player string, gameCode string, command string, data interface{})
}
