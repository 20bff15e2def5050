// Package memory provides memory-based repositories for the tombala module.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
)

// GameRepository implements domain.GameRepository and
// domain.GameRecordRepository in memory. Payouts go to ledger before the
// game is stored, so a failed credit leaves the game untouched.
type GameRepository struct {
	ledger  domain.PayoutLedger
	games   map[int64]domain.Game
	bets    map[int64][]*domain.Bet // gameID -> bets in placement order
	records map[int64]domain.GameRecord
	latest  int64
	mu      sync.RWMutex
}

// NewGameRepository creates a new memory game repository. ledger may be
// nil when nothing is ever paid out.
func NewGameRepository(ledger domain.PayoutLedger) *GameRepository {
	return &GameRepository{
		ledger:  ledger,
		games:   make(map[int64]domain.Game),
		bets:    make(map[int64][]*domain.Bet),
		records: make(map[int64]domain.GameRecord),
	}
}

func (r *GameRepository) Latest(ctx context.Context) (*domain.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.latest == 0 {
		return nil, domain.ErrGameNotFound
	}
	game := r.games[r.latest]
	return &game, nil
}

func (r *GameRepository) Create(ctx context.Context, game *domain.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.games[game.GameID]; exists {
		return fmt.Errorf("game %d already exists", game.GameID)
	}
	r.games[game.GameID] = *game
	if game.GameID > r.latest {
		r.latest = game.GameID
	}
	return nil
}

func (r *GameRepository) Update(ctx context.Context, game *domain.Game, payouts ...domain.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.games[game.GameID]; !exists {
		return domain.ErrGameNotFound
	}
	if err := r.payLocked(ctx, payouts); err != nil {
		return err
	}
	r.games[game.GameID] = *game
	return nil
}

func (r *GameRepository) AppendBet(ctx context.Context, game *domain.Game, bet *domain.Bet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.games[game.GameID]; !exists {
		return domain.ErrGameNotFound
	}
	for _, b := range r.bets[bet.GameID] {
		if b.Number == bet.Number {
			return domain.ErrNumberAlreadyTaken
		}
		if b.Player == bet.Player {
			return domain.ErrPlayerAlreadyBet
		}
	}

	stored := *bet
	r.bets[bet.GameID] = append(r.bets[bet.GameID], &stored)
	r.games[game.GameID] = *game
	return nil
}

func (r *GameRepository) Finalize(ctx context.Context, game *domain.Game, record *domain.GameRecord, payouts ...domain.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.games[game.GameID]
	if !exists {
		return domain.ErrGameNotFound
	}
	if _, written := r.records[record.GameID]; written || stored.Drawn {
		return domain.ErrGameAlreadyDrawn
	}
	if err := r.payLocked(ctx, payouts); err != nil {
		return err
	}
	r.games[game.GameID] = *game
	r.records[record.GameID] = *record
	return nil
}

func (r *GameRepository) payLocked(ctx context.Context, payouts []domain.Payout) error {
	if len(payouts) == 0 {
		return nil
	}
	if r.ledger == nil {
		return fmt.Errorf("no ledger for %d payouts", len(payouts))
	}
	for _, p := range payouts {
		if _, err := r.ledger.Credit(ctx, p.Account, p.Amount, p.Reason); err != nil {
			return fmt.Errorf("credit %s: %w", p.Account, err)
		}
	}
	return nil
}

func (r *GameRepository) BetsByGame(ctx context.Context, gameID int64) ([]*domain.Bet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bets := make([]*domain.Bet, 0, len(r.bets[gameID]))
	for _, b := range r.bets[gameID] {
		copied := *b
		bets = append(bets, &copied)
	}
	return bets, nil
}

func (r *GameRepository) Get(ctx context.Context, gameID int64) (*domain.GameRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[gameID]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	return &record, nil
}

func (r *GameRepository) ListRange(ctx context.Context, fromID, toID int64) ([]*domain.GameRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*domain.GameRecord, 0)
	for id, record := range r.records {
		if id >= fromID && id <= toID {
			copied := record
			records = append(records, &copied)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].GameID > records[j].GameID
	})
	return records, nil
}
