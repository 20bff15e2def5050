package usecase

import (
	"context"
	"time"

	"github.com/frankieli/base_tombala/pkg/logger"
)

// Keeper fires the draw trigger in-process so the lifecycle advances even
// without an external cron.
type Keeper struct {
	uc       *TombalaUseCase
	interval time.Duration
}

// NewKeeper creates a keeper ticking every interval
func NewKeeper(uc *TombalaUseCase, interval time.Duration) *Keeper {
	return &Keeper{uc: uc, interval: interval}
}

// Start runs until ctx is done. A non-positive interval returns immediately.
func (k *Keeper) Start(ctx context.Context) {
	if k.interval <= 0 {
		logger.Info(ctx).Msg("[Keeper] disabled")
		return
	}

	logger.Info(ctx).Dur("interval", k.interval).Msg("🚀 [Keeper] started")

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx).Msg("🛑 [Keeper] stopping")
			return
		case <-ticker.C:
			k.Tick(ctx)
		}
	}
}

// Tick runs the trigger once if the current game's window has elapsed
func (k *Keeper) Tick(ctx context.Context) {
	if k.uc.IsGameActive(ctx) {
		return
	}

	tickCtx := logger.WithRequestID(ctx, logger.GenerateRequestID())
	result, err := k.uc.RunDrawTrigger(tickCtx)
	if err != nil {
		logger.Error(tickCtx).Err(err).Msg("❌ [Keeper] draw trigger failed")
		return
	}

	logger.Info(tickCtx).
		Str("action", result.Action).
		Int64("game_id", result.GameID).
		Msg("[Keeper] tick")
}
