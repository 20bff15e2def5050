package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GameRecord is written once when a game is drawn and never changes
type GameRecord struct {
	GameID        int64           `gorm:"primaryKey;autoIncrement:false" json:"gameId"`
	WinningNumber int             `gorm:"not null" json:"winningNumber"`
	Winner        Address         `gorm:"type:varchar(42);not null;index" json:"winner"`
	Prize         decimal.Decimal `gorm:"type:varchar(80);not null" json:"prize"`
	TotalBets     int             `gorm:"not null" json:"totalBets"`
	TotalPot      decimal.Decimal `gorm:"type:varchar(80);not null" json:"totalPot"`
	Rollover      decimal.Decimal `gorm:"type:varchar(80);not null" json:"rollover"`
	SeedHash      string          `gorm:"type:varchar(64);not null" json:"seedHash"`
	ServerSeed    string          `gorm:"type:varchar(64);not null" json:"serverSeed"`
	Candidates    Numbers         `gorm:"type:varchar(128);not null" json:"candidates"`
	DrawnAt       time.Time       `gorm:"not null" json:"drawnAt"`
}

// TableName overrides the table name
func (GameRecord) TableName() string {
	return "game_records"
}

// HasWinner reports whether the winning number had an owner
func (r *GameRecord) HasWinner() bool {
	return !r.Winner.IsZero()
}

// Numbers is an ascending number set stored as a JSON array
type Numbers []int

// Value implements driver.Valuer
func (n Numbers) Value() (driver.Value, error) {
	if n == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(n))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (n *Numbers) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*n = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan numbers: unsupported type %T", src)
	}
	return json.Unmarshal(raw, (*[]int)(n))
}
