// Package wallet keeps per-account balances of prizes and withdrawals owed
// by the game. Accounts are address strings.
package wallet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for zero or negative credits
var ErrInvalidAmount = errors.New("amount must be positive")

// Transfer is one credit, kept as an audit trail
type Transfer struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Account   string          `gorm:"type:varchar(64);not null;index" json:"account"`
	Amount    decimal.Decimal `gorm:"type:varchar(80);not null" json:"amount"`
	Balance   decimal.Decimal `gorm:"type:varchar(80);not null" json:"balance"`
	Reason    string          `gorm:"type:varchar(128);not null" json:"reason"`
	CreatedAt time.Time       `gorm:"not null" json:"createdAt"`
}

// TableName overrides the table name
func (Transfer) TableName() string {
	return "wallet_transfers"
}

// MemoryLedger implements the payout ledger in memory
type MemoryLedger struct {
	balances  map[string]decimal.Decimal
	transfers []Transfer
	mu        sync.RWMutex
}

// NewMemoryLedger creates a new memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]decimal.Decimal),
	}
}

// Balance returns the account's balance; unknown accounts hold zero
func (l *MemoryLedger) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account], nil
}

// Credit adds amount to the account
func (l *MemoryLedger) Credit(ctx context.Context, account string, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	newBalance := l.balances[account].Add(amount)
	l.balances[account] = newBalance
	l.transfers = append(l.transfers, Transfer{
		ID:        uint(len(l.transfers) + 1),
		Account:   account,
		Amount:    amount,
		Balance:   newBalance,
		Reason:    reason,
		CreatedAt: time.Now(),
	})
	return newBalance, nil
}
