// Package usecase implements the business logic for the tombala module.
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/frankieli/base_tombala/internal/modules/tombala/machine"
	"github.com/frankieli/base_tombala/pkg/logger"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// GameCode tags pushed events
const GameCode = "tombala"

// CommandPrize is pushed to the winner's own sockets after a draw
const CommandPrize = "prize"

// PrizeNotice is the payload of CommandPrize
type PrizeNotice struct {
	GameID        int64           `json:"gameId"`
	WinningNumber int             `json:"winningNumber"`
	Prize         decimal.Decimal `json:"prize"`
}

// Options configure the use case
type Options struct {
	Network         string
	HistoryCacheTTL time.Duration
}

// TombalaUseCase wires the state machine to persistence, caching and push
type TombalaUseCase struct {
	stateMachine *machine.StateMachine
	records      domain.GameRecordRepository
	snapshots    domain.SnapshotStore
	ledger       domain.PayoutLedger
	broadcaster  domain.Broadcaster
	network      string

	cache *cache.Cache
	group singleflight.Group
	mu    sync.RWMutex
}

// NewTombalaUseCase creates a new tombala use case
func NewTombalaUseCase(
	stateMachine *machine.StateMachine,
	records domain.GameRecordRepository,
	snapshots domain.SnapshotStore,
	ledger domain.PayoutLedger,
	broadcaster domain.Broadcaster,
	opts Options,
) *TombalaUseCase {
	ttl := opts.HistoryCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	uc := &TombalaUseCase{
		stateMachine: stateMachine,
		records:      records,
		snapshots:    snapshots,
		ledger:       ledger,
		broadcaster:  broadcaster,
		network:      opts.Network,
		cache:        cache.New(ttl, 2*ttl),
	}

	// Register event handler to persist snapshots and push events
	stateMachine.RegisterEventHandler(uc.handleGameEvent)

	return uc
}

// SetBroadcaster sets the broadcaster (the gateway is built after the use case)
func (uc *TombalaUseCase) SetBroadcaster(b domain.Broadcaster) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.broadcaster = b
}

// Network is the chain label reported by the API
func (uc *TombalaUseCase) Network() string {
	return uc.network
}

// handleGameEvent handles events from the state machine. Events arrive one
// at a time in commit order, so the last snapshot saved is the newest.
func (uc *TombalaUseCase) handleGameEvent(event machine.GameEvent) {
	ctx := context.Background()

	if err := uc.SaveSnapshot(ctx, string(event.Type)); err != nil {
		logger.Error(ctx).
			Err(err).
			Str("event", string(event.Type)).
			Msg("❌ [Tombala] snapshot save failed")
	}

	uc.mu.RLock()
	broadcaster := uc.broadcaster
	uc.mu.RUnlock()

	if broadcaster == nil {
		return
	}
	broadcaster.Broadcast(GameCode, string(event.Type), map[string]interface{}{
		"gameId":    event.GameID,
		"timestamp": event.Timestamp.Unix(),
		"payload":   event.Data,
	})

	if drawn, ok := event.Data.(machine.GameDrawnData); ok && !drawn.Winner.IsZero() {
		broadcaster.SendToPlayer(drawn.Winner.String(), GameCode, CommandPrize, PrizeNotice{
			GameID:        event.GameID,
			WinningNumber: drawn.WinningNumber,
			Prize:         drawn.Prize,
		})
	}
}

// Flush waits until every pending event has been persisted and pushed
func (uc *TombalaUseCase) Flush() {
	uc.stateMachine.Flush()
}

// SaveSnapshot writes the current state to the snapshot store
func (uc *TombalaUseCase) SaveSnapshot(ctx context.Context, lastEvent string) error {
	if uc.snapshots == nil {
		return nil
	}
	snap, ok := uc.buildSnapshot(lastEvent)
	if !ok {
		return machine.ErrNotRestored
	}
	return uc.snapshots.Save(ctx, snap)
}

func (uc *TombalaUseCase) buildSnapshot(lastEvent string) (*domain.Snapshot, bool) {
	game, ok := uc.stateMachine.CurrentGame()
	if !ok {
		return nil, false
	}
	return &domain.Snapshot{
		GameID:        game.GameID,
		Drawn:         game.Drawn,
		Pot:           game.Pot,
		BetsCount:     game.BetsCount,
		EndsAt:        game.EndsAt,
		FilledNumbers: uc.stateMachine.FilledNumbers(),
		LastEvent:     lastEvent,
		UpdatedAt:     time.Now(),
	}, true
}

// Snapshot returns the stored snapshot, falling back to live state
func (uc *TombalaUseCase) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	if uc.snapshots != nil {
		snap, err := uc.snapshots.Load(ctx)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, domain.ErrGameNotFound) {
			logger.Warn(ctx).Err(err).Msg("snapshot store unavailable, serving live state")
		}
	}

	snap, ok := uc.buildSnapshot("")
	if !ok {
		return nil, machine.ErrNotRestored
	}
	return snap, nil
}

// PlaceBet handles a player placing a bet
func (uc *TombalaUseCase) PlaceBet(ctx context.Context, player domain.Address, number int, value decimal.Decimal) (*domain.Receipt, *domain.Bet, error) {
	logger.Info(ctx).
		Int("number", number).
		Str("value", value.String()).
		Msg("bet request")

	bet, err := uc.stateMachine.PlaceBet(ctx, player, number, value)
	if err != nil {
		logger.Warn(ctx).
			Err(err).
			Int("number", number).
			Msg("bet rejected")
		return nil, nil, err
	}

	receipt := newReceipt(bet.GameID)
	logger.Info(ctx).
		Int64("game_id", bet.GameID).
		Str("bet_id", bet.BetID).
		Str("tx_hash", receipt.TransactionHash).
		Msg("bet accepted")

	return receipt, bet, nil
}

// DrawWinner draws the current game
func (uc *TombalaUseCase) DrawWinner(ctx context.Context) (*domain.Receipt, *domain.GameRecord, error) {
	record, err := uc.stateMachine.DrawWinner(ctx)
	if err != nil {
		logger.Warn(ctx).Err(err).Msg("draw rejected")
		return nil, nil, err
	}

	uc.cache.Set(recordKey(record.GameID), record, cache.DefaultExpiration)

	return newReceipt(record.GameID), record, nil
}

// StartNewGame opens the next game
func (uc *TombalaUseCase) StartNewGame(ctx context.Context) (*domain.Receipt, *domain.Game, error) {
	game, err := uc.stateMachine.StartNewGame(ctx)
	if err != nil {
		logger.Warn(ctx).Err(err).Msg("start new game rejected")
		return nil, nil, err
	}
	return newReceipt(game.GameID), game, nil
}

// EmergencyWithdraw drains pot and house balance to the owner
func (uc *TombalaUseCase) EmergencyWithdraw(ctx context.Context, caller domain.Address) (*domain.Receipt, decimal.Decimal, error) {
	amount, err := uc.stateMachine.EmergencyWithdraw(ctx, caller)
	if err != nil {
		logger.Warn(ctx).Err(err).Str("caller", caller.String()).Msg("emergency withdraw rejected")
		return nil, decimal.Zero, err
	}
	return newReceipt(uc.stateMachine.CurrentGameID()), amount, nil
}

// Balance returns prizes and withdrawals credited to addr
func (uc *TombalaUseCase) Balance(ctx context.Context, addr domain.Address) (decimal.Decimal, error) {
	if uc.ledger == nil {
		return decimal.Zero, nil
	}
	return uc.ledger.Balance(ctx, addr.String())
}

func (uc *TombalaUseCase) Stats(ctx context.Context) domain.GameStats {
	return uc.stateMachine.Stats()
}

func (uc *TombalaUseCase) CurrentGameID(ctx context.Context) int64 {
	return uc.stateMachine.CurrentGameID()
}

func (uc *TombalaUseCase) IsGameActive(ctx context.Context) bool {
	return uc.stateMachine.IsGameActive()
}

func (uc *TombalaUseCase) TotalPot(ctx context.Context) decimal.Decimal {
	return uc.stateMachine.TotalPot()
}

func (uc *TombalaUseCase) RemainingTime(ctx context.Context) int64 {
	return uc.stateMachine.RemainingTime()
}

func (uc *TombalaUseCase) FilledNumbers(ctx context.Context) []int {
	return uc.stateMachine.FilledNumbers()
}

func (uc *TombalaUseCase) HasPlayerBet(ctx context.Context, player domain.Address) bool {
	return uc.stateMachine.HasPlayerBet(player)
}

func (uc *TombalaUseCase) PlayerNumbers(ctx context.Context, player domain.Address) []int {
	return uc.stateMachine.PlayerNumbers(player)
}

func (uc *TombalaUseCase) NumberOwner(ctx context.Context, number int) (domain.Address, error) {
	return uc.stateMachine.NumberOwner(number)
}

func (uc *TombalaUseCase) Constants(ctx context.Context) machine.Constants {
	return uc.stateMachine.Constants()
}

// RegisterEventHandler registers an additional event handler
func (uc *TombalaUseCase) RegisterEventHandler(handler machine.EventHandler) {
	uc.stateMachine.RegisterEventHandler(handler)
}

// newReceipt mints a transaction-hash shaped id for a write
func newReceipt(gameID int64) *domain.Receipt {
	sum := sha256.Sum256([]byte(uuid.NewString()))
	return &domain.Receipt{
		TransactionHash: "0x" + hex.EncodeToString(sum[:]),
		GameID:          gameID,
	}
}

func recordKey(gameID int64) string {
	return fmt.Sprintf("record:%d", gameID)
}
