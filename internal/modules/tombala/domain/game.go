package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Game is the current (or a past) round of the lifecycle. Only the row with
// the highest GameID is live.
type Game struct {
	GameID       int64           `gorm:"primaryKey;autoIncrement:false" json:"gameId"`
	Drawn        bool            `gorm:"not null;default:false" json:"drawn"`
	Pot          decimal.Decimal `gorm:"type:varchar(80);not null" json:"pot"`
	HouseBalance decimal.Decimal `gorm:"type:varchar(80);not null" json:"houseBalance"`
	Rollover     decimal.Decimal `gorm:"type:varchar(80);not null" json:"rollover"` // carried into the next game
	BetsCount    int             `gorm:"not null;default:0" json:"betsCount"`
	SeedHash     string          `gorm:"type:varchar(64);not null" json:"seedHash"`
	ServerSeed   string          `gorm:"type:varchar(64);not null" json:"-"`
	StartedAt    time.Time       `gorm:"not null" json:"startedAt"`
	EndsAt       time.Time       `gorm:"not null;index" json:"endsAt"`
	DrawnAt      *time.Time      `json:"drawnAt,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime:false" json:"-"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime:false" json:"-"`
}

// TableName overrides the table name
func (Game) TableName() string {
	return "games"
}

// NewGame opens a betting window of duration d starting at now
func NewGame(gameID int64, now time.Time, d time.Duration, pot, house decimal.Decimal, seedHash, serverSeed string) *Game {
	return &Game{
		GameID:       gameID,
		Pot:          pot,
		HouseBalance: house,
		Rollover:     decimal.Zero,
		SeedHash:     seedHash,
		ServerSeed:   serverSeed,
		StartedAt:    now,
		EndsAt:       now.Add(d),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsActive reports whether bets are accepted at now
func (g *Game) IsActive(now time.Time) bool {
	return !g.Drawn && now.Before(g.EndsAt)
}

// TimeLeft is the remaining betting window, never negative
func (g *Game) TimeLeft(now time.Time) time.Duration {
	if g.Drawn || !now.Before(g.EndsAt) {
		return 0
	}
	return g.EndsAt.Sub(now)
}

// PendingRollover is what the next game starts with. A drawn game hands over
// its rollover; an expired game that never had bets hands over its whole pot.
func (g *Game) PendingRollover() decimal.Decimal {
	if g.Drawn {
		return g.Rollover
	}
	return g.Pot
}

// GameStats mirrors getGameStats()
type GameStats struct {
	GameID    int64           `json:"gameId"`
	IsActive  bool            `json:"isActive"`
	Pot       decimal.Decimal `json:"pot"`
	BetsCount int             `json:"betsCount"`
	TimeLeft  int64           `json:"timeLeft"` // seconds
}

// Stats projects the game at now
func (g *Game) Stats(now time.Time) GameStats {
	return GameStats{
		GameID:    g.GameID,
		IsActive:  g.IsActive(now),
		Pot:       g.Pot,
		BetsCount: g.BetsCount,
		TimeLeft:  int64(g.TimeLeft(now) / time.Second),
	}
}
