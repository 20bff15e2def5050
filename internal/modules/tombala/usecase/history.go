package usecase

import (
	"context"
	"fmt"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/frankieli/base_tombala/internal/modules/tombala/machine"
	"github.com/frankieli/base_tombala/pkg/logger"
	"github.com/patrickmn/go-cache"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 50
)

// HistoryPage is the body of GET /api/games without a gameId
type HistoryPage struct {
	Games         []*domain.GameRecord `json:"games"`
	TotalGames    int                  `json:"totalGames"`
	CurrentGameID int64                `json:"currentGameId"`
	Network       string               `json:"network"`
}

// VerifiedRecord is a finished game with the result of replaying its draw
type VerifiedRecord struct {
	*domain.GameRecord
	Verified bool `json:"verified"`
}

// ClampLimit bounds a requested page size to [1, MaxHistoryLimit]
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

// GameRecord returns the record of a finished game. Records never change,
// so hits are served from cache.
func (uc *TombalaUseCase) GameRecord(ctx context.Context, gameID int64) (*domain.GameRecord, error) {
	key := recordKey(gameID)
	if cached, ok := uc.cache.Get(key); ok {
		return cached.(*domain.GameRecord), nil
	}

	record, err := uc.records.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	uc.cache.Set(key, record, cache.DefaultExpiration)
	return record, nil
}

// VerifyGame returns the record of gameID and whether its revealed seed
// and candidate set reproduce the winning number
func (uc *TombalaUseCase) VerifyGame(ctx context.Context, gameID int64) (*VerifiedRecord, error) {
	record, err := uc.GameRecord(ctx, gameID)
	if err != nil {
		return nil, err
	}

	verified := machine.Verify(record)
	if !verified {
		logger.Warn(ctx).Int64("game_id", gameID).Msg("⚠️ [Tombala] draw does not verify")
	}
	return &VerifiedRecord{GameRecord: record, Verified: verified}, nil
}

// ListGames returns the won games among the last limit ids before the
// current one, most recent first. Concurrent identical requests share one
// lookup.
func (uc *TombalaUseCase) ListGames(ctx context.Context, limit int) (*HistoryPage, error) {
	limit = ClampLimit(limit)
	current := uc.stateMachine.CurrentGameID()

	// Every id below current is final, so a page keyed by current is too.
	pageKey := fmt.Sprintf("page:%d:%d", current, limit)
	if cached, ok := uc.cache.Get(pageKey); ok {
		return cached.(*HistoryPage), nil
	}

	v, err, shared := uc.group.Do(pageKey, func() (interface{}, error) {
		from := current - int64(limit) + 1
		if from < 1 {
			from = 1
		}
		to := current - 1

		games := make([]*domain.GameRecord, 0)
		if to >= from {
			records, err := uc.records.ListRange(ctx, from, to)
			if err != nil {
				return nil, fmt.Errorf("list game records: %w", err)
			}
			for _, record := range records {
				uc.cache.Set(recordKey(record.GameID), record, cache.DefaultExpiration)
				if record.HasWinner() {
					games = append(games, record)
				}
			}
		}

		page := &HistoryPage{
			Games:         games,
			TotalGames:    len(games),
			CurrentGameID: current,
			Network:       uc.network,
		}
		uc.cache.Set(pageKey, page, cache.DefaultExpiration)
		return page, nil
	})
	if err != nil {
		logger.Error(ctx).Err(err).Int("limit", limit).Msg("❌ [Tombala] history lookup failed")
		return nil, err
	}

	logger.Debug(ctx).
		Int64("current_game_id", current).
		Int("limit", limit).
		Bool("shared", shared).
		Msg("history served")

	return v.(*HistoryPage), nil
}
