// Package db provides gorm-backed repositories for the tombala module.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tombala tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Game{}, &domain.Bet{}, &domain.GameRecord{})
}

// Ledger credits an account inside the caller's transaction
type Ledger interface {
	CreditTx(tx *gorm.DB, account string, amount decimal.Decimal, reason string) (decimal.Decimal, error)
}

// GameRepository implements domain.GameRepository and
// domain.GameRecordRepository with gorm. Payouts are credited through
// ledger on the same transaction as the game write.
type GameRepository struct {
	db     *gorm.DB
	ledger Ledger
}

func NewGameRepository(db *gorm.DB, ledger Ledger) *GameRepository {
	return &GameRepository{db: db, ledger: ledger}
}

func (r *GameRepository) pay(tx *gorm.DB, payouts []domain.Payout) error {
	if len(payouts) == 0 {
		return nil
	}
	if r.ledger == nil {
		return fmt.Errorf("no ledger for %d payouts", len(payouts))
	}
	for _, p := range payouts {
		if _, err := r.ledger.CreditTx(tx, p.Account, p.Amount, p.Reason); err != nil {
			return fmt.Errorf("credit %s: %w", p.Account, err)
		}
	}
	return nil
}

func (r *GameRepository) Latest(ctx context.Context) (*domain.Game, error) {
	var game domain.Game
	err := r.db.WithContext(ctx).Order("game_id DESC").First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *GameRepository) Create(ctx context.Context, game *domain.Game) error {
	return r.db.WithContext(ctx).Create(game).Error
}

func (r *GameRepository) Update(ctx context.Context, game *domain.Game, payouts ...domain.Payout) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Game{}).
			Where("game_id = ?", game.GameID).
			Updates(map[string]interface{}{
				"pot":           game.Pot,
				"house_balance": game.HouseBalance,
				"rollover":      game.Rollover,
				"updated_at":    game.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrGameNotFound
		}
		return r.pay(tx, payouts)
	})
}

// AppendBet inserts the bet and bumps the game in one transaction. The
// unique indexes on bets settle races between instances.
func (r *GameRepository) AppendBet(ctx context.Context, game *domain.Game, bet *domain.Bet) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkBetConflict(tx, bet); err != nil {
			return err
		}

		if err := tx.Create(bet).Error; err != nil {
			return fmt.Errorf("insert bet: %w", err)
		}

		result := tx.Model(&domain.Game{}).
			Where("game_id = ? AND drawn = ?", game.GameID, false).
			Updates(map[string]interface{}{
				"pot":        game.Pot,
				"bets_count": game.BetsCount,
				"updated_at": game.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrGameNotActive
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if _, ok := domain.AsContractError(err); ok {
		return err
	}

	// Lost a race on a unique index: report which one.
	if conflict := checkBetConflict(r.db.WithContext(ctx), bet); conflict != nil {
		if _, ok := domain.AsContractError(conflict); ok {
			return conflict
		}
	}
	return err
}

func checkBetConflict(tx *gorm.DB, bet *domain.Bet) error {
	var count int64
	if err := tx.Model(&domain.Bet{}).
		Where("game_id = ? AND number = ?", bet.GameID, bet.Number).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrNumberAlreadyTaken
	}

	if err := tx.Model(&domain.Bet{}).
		Where("game_id = ? AND player = ?", bet.GameID, bet.Player).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrPlayerAlreadyBet
	}
	return nil
}

// Finalize marks the game drawn, writes its record and credits its payouts
// in one transaction
func (r *GameRepository) Finalize(ctx context.Context, game *domain.Game, record *domain.GameRecord, payouts ...domain.Payout) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Game{}).
			Where("game_id = ? AND drawn = ?", game.GameID, false).
			Updates(map[string]interface{}{
				"drawn":         true,
				"drawn_at":      game.DrawnAt,
				"pot":           game.Pot,
				"house_balance": game.HouseBalance,
				"rollover":      game.Rollover,
				"updated_at":    game.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrGameAlreadyDrawn
		}

		if err := tx.Create(record).Error; err != nil {
			return err
		}
		return r.pay(tx, payouts)
	})
}

func (r *GameRepository) BetsByGame(ctx context.Context, gameID int64) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("placed_at ASC").
		Find(&bets).Error
	if err != nil {
		return nil, err
	}
	return bets, nil
}

func (r *GameRepository) Get(ctx context.Context, gameID int64) (*domain.GameRecord, error) {
	var record domain.GameRecord
	err := r.db.WithContext(ctx).Where("game_id = ?", gameID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *GameRepository) ListRange(ctx context.Context, fromID, toID int64) ([]*domain.GameRecord, error) {
	var records []*domain.GameRecord
	err := r.db.WithContext(ctx).
		Where("game_id BETWEEN ? AND ?", fromID, toID).
		Order("game_id DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
