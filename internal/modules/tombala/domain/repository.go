package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// GameRepository persists games and their bets. Every write that touches
// both a game and another row is a single transaction.
type GameRepository interface {
	// Latest returns the game with the highest id, or ErrGameNotFound
	Latest(ctx context.Context) (*Game, error)
	Create(ctx context.Context, game *Game) error
	// Update stores the game's balances and commits payouts with them
	Update(ctx context.Context, game *Game, payouts ...Payout) error
	// AppendBet stores bet and the updated pot/betsCount of game together.
	// A duplicate (game, number) or (game, player) yields
	// ErrNumberAlreadyTaken or ErrPlayerAlreadyBet.
	AppendBet(ctx context.Context, game *Game, bet *Bet) error
	// Finalize stores the drawn game, its record and its payouts together.
	// A game that is already drawn yields ErrGameAlreadyDrawn.
	Finalize(ctx context.Context, game *Game, record *GameRecord, payouts ...Payout) error
	BetsByGame(ctx context.Context, gameID int64) ([]*Bet, error)
}

// GameRecordRepository reads finished games
type GameRecordRepository interface {
	// Get returns ErrGameNotFound if gameID was never drawn
	Get(ctx context.Context, gameID int64) (*GameRecord, error)
	// ListRange returns records with fromID <= gameId <= toID, highest first
	ListRange(ctx context.Context, fromID, toID int64) ([]*GameRecord, error)
}

// Payout is a ledger credit committed with a game write
type Payout struct {
	Account string
	Amount  decimal.Decimal
	Reason  string
}

// PayoutLedger holds prizes and withdrawals owed to accounts. Accounts are
// address strings; Credit returns the new balance.
type PayoutLedger interface {
	Credit(ctx context.Context, account string, amount decimal.Decimal, reason string) (decimal.Decimal, error)
	Balance(ctx context.Context, account string) (decimal.Decimal, error)
}

// SnapshotStore keeps the most recent lifecycle snapshot for cheap reads
type SnapshotStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	// Load returns ErrGameNotFound when nothing has been saved yet
	Load(ctx context.Context) (*Snapshot, error)
}
