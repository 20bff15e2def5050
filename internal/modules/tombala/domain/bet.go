package domain

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Bet is one player's claim on one number in one game
type Bet struct {
	BetID    string          `gorm:"primaryKey;type:varchar(32)" json:"betId"`
	GameID   int64           `gorm:"not null;uniqueIndex:idx_bets_game_number;uniqueIndex:idx_bets_game_player" json:"gameId"`
	Number   int             `gorm:"not null;uniqueIndex:idx_bets_game_number" json:"number"`
	Player   Address         `gorm:"type:varchar(42);not null;uniqueIndex:idx_bets_game_player" json:"player"`
	Amount   decimal.Decimal `gorm:"type:varchar(80);not null" json:"amount"`
	PlacedAt time.Time       `gorm:"not null" json:"placedAt"`
}

// TableName overrides the table name
func (Bet) TableName() string {
	return "bets"
}

var (
	nodeMu sync.Mutex
	node   *snowflake.Node
)

// SetNodeID sets the snowflake node used for bet ids. Each instance sharing
// a database needs its own node id (0..1023).
func SetNodeID(id int64) error {
	n, err := snowflake.NewNode(id)
	if err != nil {
		return fmt.Errorf("snowflake node %d: %w", id, err)
	}
	nodeMu.Lock()
	node = n
	nodeMu.Unlock()
	return nil
}

// NewBet creates a new bet
func NewBet(gameID int64, player Address, number int, amount decimal.Decimal, at time.Time) *Bet {
	return &Bet{
		BetID:    generateBetID(),
		GameID:   gameID,
		Number:   number,
		Player:   player,
		Amount:   amount,
		PlacedAt: at,
	}
}

func generateBetID() string {
	nodeMu.Lock()
	if node == nil {
		node, _ = snowflake.NewNode(1)
	}
	n := node
	nodeMu.Unlock()
	return n.Generate().String()
}
