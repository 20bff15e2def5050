package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account is the current balance row of one account
type Account struct {
	Account   string          `gorm:"primaryKey;type:varchar(64)" json:"account"`
	Balance   decimal.Decimal `gorm:"type:varchar(80);not null" json:"balance"`
	UpdatedAt time.Time       `gorm:"not null" json:"updatedAt"`
}

// TableName overrides the table name
func (Account) TableName() string {
	return "wallet_accounts"
}

// AutoMigrate creates or updates the wallet tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Account{}, &Transfer{})
}

// DBLedger implements the payout ledger with gorm. Each credit updates the
// balance row and appends a transfer in one transaction.
type DBLedger struct {
	db *gorm.DB
}

func NewDBLedger(db *gorm.DB) *DBLedger {
	return &DBLedger{db: db}
}

func (l *DBLedger) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	var row Account
	err := l.db.WithContext(ctx).Where("account = ?", account).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return row.Balance, nil
}

func (l *DBLedger) Credit(ctx context.Context, account string, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		newBalance, err = l.CreditTx(tx, account, amount, reason)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

// CreditTx credits account on tx, so the credit commits or rolls back with
// the caller's other writes
func (l *DBLedger) CreditTx(tx *gorm.DB, account string, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	now := time.Now()

	var row Account
	err := tx.Where("account = ?", account).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = Account{Account: account, Balance: decimal.Zero}
	case err != nil:
		return decimal.Zero, err
	}

	row.Balance = row.Balance.Add(amount)
	row.UpdatedAt = now

	if err := tx.Save(&row).Error; err != nil {
		return decimal.Zero, err
	}
	if err := tx.Create(&Transfer{
		Account:   account,
		Amount:    amount,
		Balance:   row.Balance,
		Reason:    reason,
		CreatedAt: now,
	}).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Balance, nil
}
