package machine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/frankieli/base_tombala/pkg/logger"
	"github.com/shopspring/decimal"
)

// EventType names a lifecycle event
type EventType string

const (
	EventBetPlaced         EventType = "bet_placed"
	EventGameDrawn         EventType = "game_drawn"
	EventNewGameStarted    EventType = "new_game_started"
	EventEmergencyWithdraw EventType = "emergency_withdraw"
)

// DrawMode selects the candidate set for a draw
type DrawMode string

const (
	// DrawModeFilled draws among claimed numbers only, so there is always a winner
	DrawModeFilled DrawMode = "filled"
	// DrawModeFull draws from 1..25; an unclaimed number rolls the pot over
	DrawModeFull DrawMode = "full"
)

// ErrNotRestored is returned by writes issued before Restore
var ErrNotRestored = errors.New("state machine not restored")

// GameEvent represents a lifecycle event
type GameEvent struct {
	Type      EventType
	GameID    int64
	Data      interface{}
	Timestamp time.Time
}

// BetPlacedData is the payload of EventBetPlaced
type BetPlacedData struct {
	Player domain.Address `json:"player"`
	Number int            `json:"number"`
	BetID  string         `json:"betId"`
}

// GameDrawnData is the payload of EventGameDrawn
type GameDrawnData struct {
	WinningNumber int             `json:"winningNumber"`
	Winner        domain.Address  `json:"winner"`
	Prize         decimal.Decimal `json:"prize"`
	Rollover      decimal.Decimal `json:"rollover"`
}

// NewGameStartedData is the payload of EventNewGameStarted
type NewGameStartedData struct {
	Pot      decimal.Decimal `json:"pot"`
	EndsAt   time.Time       `json:"endsAt"`
	SeedHash string          `json:"seedHash"`
}

// EmergencyWithdrawData is the payload of EventEmergencyWithdraw
type EmergencyWithdrawData struct {
	Owner  domain.Address  `json:"owner"`
	Amount decimal.Decimal `json:"amount"`
}

// EventHandler handles game events
type EventHandler func(event GameEvent)

// Options are the lifecycle parameters fixed at construction
type Options struct {
	Owner              domain.Address
	BetPrice           decimal.Decimal
	Duration           time.Duration
	WinnerSharePercent int
	AutoRestart        bool
	DrawMode           DrawMode
}

// DefaultOptions returns the deployed-contract defaults
func DefaultOptions(owner domain.Address) Options {
	return Options{
		Owner:              owner,
		BetPrice:           domain.BetPrice,
		Duration:           domain.GameDuration,
		WinnerSharePercent: domain.WinnerSharePercent,
		AutoRestart:        true,
		DrawMode:           DrawModeFilled,
	}
}

// Constants mirrors the contract's public constants
type Constants struct {
	BetPrice           decimal.Decimal `json:"betPrice"`
	MinNumber          int             `json:"minNumber"`
	MaxNumber          int             `json:"maxNumber"`
	GameDuration       int64           `json:"gameDuration"` // seconds
	WinnerSharePercent int             `json:"winnerSharePercent"`
	Owner              domain.Address  `json:"owner"`
}

// StateMachine owns the current game. Writes are serialized by mu and reach
// the repository before in-memory state changes.
type StateMachine struct {
	mu   sync.RWMutex
	opts Options

	games  domain.GameRepository
	drawer *Drawer
	now    func() time.Time

	game          *domain.Game
	numberOwners  map[int]domain.Address
	playerNumbers map[domain.Address][]int

	events *dispatcher
}

// NewStateMachine creates a state machine. Call Restore before use.
// Payouts are committed by games together with the game write.
func NewStateMachine(games domain.GameRepository, opts Options) *StateMachine {
	if opts.BetPrice.IsZero() {
		opts.BetPrice = domain.BetPrice
	}
	if opts.Duration <= 0 {
		opts.Duration = domain.GameDuration
	}
	if opts.WinnerSharePercent <= 0 || opts.WinnerSharePercent > 100 {
		opts.WinnerSharePercent = domain.WinnerSharePercent
	}
	if opts.DrawMode != DrawModeFull {
		opts.DrawMode = DrawModeFilled
	}

	return &StateMachine{
		opts:          opts,
		games:         games,
		drawer:        NewDrawer(),
		now:           time.Now,
		numberOwners:  make(map[int]domain.Address),
		playerNumbers: make(map[domain.Address][]int),
		events:        newDispatcher(),
	}
}

// SetClock replaces the time source
func (sm *StateMachine) SetClock(now func() time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.now = now
}

// SetDrawer replaces the seed source
func (sm *StateMachine) SetDrawer(d *Drawer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.drawer = d
}

// RegisterEventHandler registers an event handler. Handlers run on one
// goroutine and see events in commit order.
func (sm *StateMachine) RegisterEventHandler(handler EventHandler) {
	sm.events.register(handler)
}

// emitLocked queues events for the handlers. Called with mu held so the
// queue order matches the order writes were committed.
func (sm *StateMachine) emitLocked(events ...GameEvent) {
	sm.events.enqueue(events...)
}

// Flush blocks until every event emitted so far has been handled
func (sm *StateMachine) Flush() {
	sm.events.wait()
}

// Restore loads the latest game and its bets. On an empty store it creates
// game 1, which is what deployment does.
func (sm *StateMachine) Restore(ctx context.Context) error {
	sm.mu.Lock()

	latest, err := sm.games.Latest(ctx)
	if errors.Is(err, domain.ErrGameNotFound) {
		seed, hash, err := sm.drawer.Commit()
		if err != nil {
			sm.mu.Unlock()
			return err
		}
		now := sm.now()
		game := domain.NewGame(1, now, sm.opts.Duration, decimal.Zero, decimal.Zero, hash, seed)
		if err := sm.games.Create(ctx, game); err != nil {
			sm.mu.Unlock()
			return fmt.Errorf("create first game: %w", err)
		}
		sm.resetLocked(game)
		sm.emitLocked(newGameEvent(game))
		sm.mu.Unlock()

		logger.Info(ctx).
			Int64("game_id", game.GameID).
			Time("ends_at", game.EndsAt).
			Msg("🚀 [Tombala] first game created")
		return nil
	}
	if err != nil {
		sm.mu.Unlock()
		return fmt.Errorf("load latest game: %w", err)
	}
	defer sm.mu.Unlock()

	bets, err := sm.games.BetsByGame(ctx, latest.GameID)
	if err != nil {
		return fmt.Errorf("load bets of game %d: %w", latest.GameID, err)
	}

	sm.resetLocked(latest)
	for _, bet := range bets {
		sm.numberOwners[bet.Number] = bet.Player
		sm.playerNumbers[bet.Player] = append(sm.playerNumbers[bet.Player], bet.Number)
	}

	logger.Info(ctx).
		Int64("game_id", latest.GameID).
		Int("bets_count", latest.BetsCount).
		Bool("drawn", latest.Drawn).
		Msg("🔄 [Tombala] state restored")

	return nil
}

func (sm *StateMachine) resetLocked(game *domain.Game) {
	sm.game = game
	sm.numberOwners = make(map[int]domain.Address)
	sm.playerNumbers = make(map[domain.Address][]int)
}

// PlaceBet claims number for player in the current game. value must equal
// the bet price.
func (sm *StateMachine) PlaceBet(ctx context.Context, player domain.Address, number int, value decimal.Decimal) (*domain.Bet, error) {
	if !domain.ValidNumber(number) {
		return nil, domain.ErrInvalidNumber
	}
	if !value.Equal(sm.opts.BetPrice) {
		return nil, domain.ErrIncorrectBetAmount
	}

	sm.mu.Lock()
	if sm.game == nil {
		sm.mu.Unlock()
		return nil, ErrNotRestored
	}

	now := sm.now()
	if !sm.game.IsActive(now) {
		sm.mu.Unlock()
		return nil, domain.ErrGameNotActive
	}
	if _, taken := sm.numberOwners[number]; taken {
		sm.mu.Unlock()
		return nil, domain.ErrNumberAlreadyTaken
	}
	if len(sm.playerNumbers[player]) > 0 {
		sm.mu.Unlock()
		return nil, domain.ErrPlayerAlreadyBet
	}

	updated := *sm.game
	updated.Pot = updated.Pot.Add(value)
	updated.BetsCount++
	updated.UpdatedAt = now

	bet := domain.NewBet(updated.GameID, player, number, value, now)
	if err := sm.games.AppendBet(ctx, &updated, bet); err != nil {
		sm.mu.Unlock()
		return nil, err
	}

	sm.game = &updated
	sm.numberOwners[number] = player
	sm.playerNumbers[player] = append(sm.playerNumbers[player], number)
	sm.emitLocked(GameEvent{
		Type:      EventBetPlaced,
		GameID:    updated.GameID,
		Data:      BetPlacedData{Player: player, Number: number, BetID: bet.BetID},
		Timestamp: now,
	})
	sm.mu.Unlock()

	return bet, nil
}

// DrawWinner finalizes an expired game that has bets. With AutoRestart the
// next game starts in the same call.
func (sm *StateMachine) DrawWinner(ctx context.Context) (*domain.GameRecord, error) {
	sm.mu.Lock()
	if sm.game == nil {
		sm.mu.Unlock()
		return nil, ErrNotRestored
	}

	now := sm.now()
	game := sm.game
	switch {
	case game.Drawn:
		sm.mu.Unlock()
		return nil, domain.ErrGameAlreadyDrawn
	case game.IsActive(now):
		sm.mu.Unlock()
		return nil, domain.ErrGameStillActive
	case game.BetsCount == 0:
		sm.mu.Unlock()
		return nil, domain.ErrNoNumbersToDrawFrom
	}

	candidates := sm.candidatesLocked()
	winningNumber, err := Pick(game.ServerSeed, game.GameID, game.BetsCount, candidates)
	if err != nil {
		sm.mu.Unlock()
		return nil, err
	}

	winner, owned := sm.numberOwners[winningNumber]
	if !owned {
		winner = domain.ZeroAddress
	}

	prize := decimal.Zero
	rollover := decimal.Zero
	house := game.HouseBalance
	if owned {
		prize = game.Pot.Mul(decimal.NewFromInt(int64(sm.opts.WinnerSharePercent))).Div(decimal.NewFromInt(100)).Floor()
		house = house.Add(game.Pot.Sub(prize))
	} else {
		rollover = game.Pot
	}

	updated := *game
	updated.Drawn = true
	updated.DrawnAt = &now
	updated.Pot = decimal.Zero
	updated.Rollover = rollover
	updated.HouseBalance = house
	updated.UpdatedAt = now

	record := &domain.GameRecord{
		GameID:        game.GameID,
		WinningNumber: winningNumber,
		Winner:        winner,
		Prize:         prize,
		TotalBets:     game.BetsCount,
		TotalPot:      game.Pot,
		Rollover:      rollover,
		SeedHash:      game.SeedHash,
		ServerSeed:    game.ServerSeed,
		Candidates:    domain.Numbers(candidates),
		DrawnAt:       now,
	}

	var payouts []domain.Payout
	if owned && prize.IsPositive() {
		payouts = append(payouts, domain.Payout{
			Account: winner.String(),
			Amount:  prize,
			Reason:  fmt.Sprintf("prize:game:%d", game.GameID),
		})
	}

	if err := sm.games.Finalize(ctx, &updated, record, payouts...); err != nil {
		sm.mu.Unlock()
		return nil, fmt.Errorf("finalize game %d: %w", game.GameID, err)
	}
	sm.game = &updated

	logger.Info(ctx).
		Int64("game_id", game.GameID).
		Int("winning_number", winningNumber).
		Str("winner", winner.String()).
		Str("prize", prize.String()).
		Str("rollover", rollover.String()).
		Msg("🎲 [Tombala] winner drawn")

	events := []GameEvent{{
		Type:      EventGameDrawn,
		GameID:    game.GameID,
		Data:      GameDrawnData{WinningNumber: winningNumber, Winner: winner, Prize: prize, Rollover: rollover},
		Timestamp: now,
	}}

	if sm.opts.AutoRestart {
		next, err := sm.startNewGameLocked(ctx, now)
		if err != nil {
			// The draw is committed; the next startNewGame call retries.
			logger.Error(ctx).Err(err).Int64("game_id", game.GameID).Msg("❌ [Tombala] auto restart failed")
		} else {
			events = append(events, newGameEvent(next))
		}
	}
	sm.emitLocked(events...)
	sm.mu.Unlock()

	return record, nil
}

// candidatesLocked is the ascending set the draw picks from
func (sm *StateMachine) candidatesLocked() []int {
	if sm.opts.DrawMode == DrawModeFull {
		all := make([]int, 0, domain.MaxNumber-domain.MinNumber+1)
		for n := domain.MinNumber; n <= domain.MaxNumber; n++ {
			all = append(all, n)
		}
		return all
	}
	return sm.filledLocked()
}

func (sm *StateMachine) filledLocked() []int {
	filled := make([]int, 0, len(sm.numberOwners))
	for n := range sm.numberOwners {
		filled = append(filled, n)
	}
	sort.Ints(filled)
	return filled
}

// StartNewGame opens the next game. It refuses while the current game is
// active or while an expired game with bets still awaits its draw.
func (sm *StateMachine) StartNewGame(ctx context.Context) (*domain.Game, error) {
	sm.mu.Lock()
	if sm.game == nil {
		sm.mu.Unlock()
		return nil, ErrNotRestored
	}

	now := sm.now()
	if sm.game.IsActive(now) {
		sm.mu.Unlock()
		return nil, domain.ErrGameStillActive
	}
	if !sm.game.Drawn && sm.game.BetsCount > 0 {
		sm.mu.Unlock()
		return nil, domain.ErrDrawPending
	}

	next, err := sm.startNewGameLocked(ctx, now)
	if err != nil {
		sm.mu.Unlock()
		return nil, err
	}
	sm.emitLocked(newGameEvent(next))
	sm.mu.Unlock()

	copied := *next
	return &copied, nil
}

func (sm *StateMachine) startNewGameLocked(ctx context.Context, now time.Time) (*domain.Game, error) {
	prev := sm.game

	seed, hash, err := sm.drawer.Commit()
	if err != nil {
		return nil, err
	}

	next := domain.NewGame(prev.GameID+1, now, sm.opts.Duration, prev.PendingRollover(), prev.HouseBalance, hash, seed)
	if err := sm.games.Create(ctx, next); err != nil {
		return nil, fmt.Errorf("create game %d: %w", next.GameID, err)
	}
	sm.resetLocked(next)

	logger.Info(ctx).
		Int64("game_id", next.GameID).
		Str("pot", next.Pot.String()).
		Time("ends_at", next.EndsAt).
		Msg("🟢 [Tombala] new game started")

	return next, nil
}

func newGameEvent(g *domain.Game) GameEvent {
	return GameEvent{
		Type:      EventNewGameStarted,
		GameID:    g.GameID,
		Data:      NewGameStartedData{Pot: g.Pot, EndsAt: g.EndsAt, SeedHash: g.SeedHash},
		Timestamp: g.StartedAt,
	}
}

// EmergencyWithdraw moves the pot and the house balance to the owner.
// Returns the amount withdrawn.
func (sm *StateMachine) EmergencyWithdraw(ctx context.Context, caller domain.Address) (decimal.Decimal, error) {
	if caller != sm.opts.Owner {
		return decimal.Zero, domain.ErrOwnableUnauthorizedAccount
	}

	sm.mu.Lock()
	if sm.game == nil {
		sm.mu.Unlock()
		return decimal.Zero, ErrNotRestored
	}

	now := sm.now()
	amount := sm.game.Pot.Add(sm.game.HouseBalance)

	updated := *sm.game
	updated.Pot = decimal.Zero
	updated.HouseBalance = decimal.Zero
	updated.Rollover = decimal.Zero
	updated.UpdatedAt = now

	var payouts []domain.Payout
	if amount.IsPositive() {
		payouts = append(payouts, domain.Payout{
			Account: caller.String(),
			Amount:  amount,
			Reason:  fmt.Sprintf("emergency_withdraw:game:%d", updated.GameID),
		})
	}

	if err := sm.games.Update(ctx, &updated, payouts...); err != nil {
		sm.mu.Unlock()
		return decimal.Zero, fmt.Errorf("update game %d: %w", updated.GameID, err)
	}
	sm.game = &updated
	sm.emitLocked(GameEvent{
		Type:      EventEmergencyWithdraw,
		GameID:    updated.GameID,
		Data:      EmergencyWithdrawData{Owner: caller, Amount: amount},
		Timestamp: now,
	})
	sm.mu.Unlock()

	logger.Warn(ctx).
		Int64("game_id", updated.GameID).
		Str("amount", amount.String()).
		Msg("⚠️ [Tombala] emergency withdraw")

	return amount, nil
}

// CurrentGame returns a copy of the current game (thread-safe)
func (sm *StateMachine) CurrentGame() (domain.Game, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.game == nil {
		return domain.Game{}, false
	}
	return *sm.game, true
}

// CurrentGameID mirrors currentGameId
func (sm *StateMachine) CurrentGameID() int64 {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.game == nil {
		return 0
	}
	return sm.game.GameID
}

// IsGameActive mirrors isGameActive
func (sm *StateMachine) IsGameActive() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.game != nil && sm.game.IsActive(sm.now())
}

// TotalPot mirrors totalPot
func (sm *StateMachine) TotalPot() decimal.Decimal {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.game == nil {
		return decimal.Zero
	}
	return sm.game.Pot
}

// RemainingTime mirrors getRemainingTime, in seconds
func (sm *StateMachine) RemainingTime() int64 {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.game == nil {
		return 0
	}
	return int64(sm.game.TimeLeft(sm.now()) / time.Second)
}

// FilledNumbers mirrors getFilledNumbers, ascending
func (sm *StateMachine) FilledNumbers() []int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.filledLocked()
}

// HasPlayerBet mirrors hasPlayerBet
func (sm *StateMachine) HasPlayerBet(player domain.Address) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.playerNumbers[player]) > 0
}

// PlayerNumbers mirrors getPlayerNumbers
func (sm *StateMachine) PlayerNumbers(player domain.Address) []int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	numbers := make([]int, len(sm.playerNumbers[player]))
	copy(numbers, sm.playerNumbers[player])
	return numbers
}

// NumberOwner mirrors numberOwners(n); unclaimed numbers map to ZeroAddress
func (sm *StateMachine) NumberOwner(number int) (domain.Address, error) {
	if !domain.ValidNumber(number) {
		return "", domain.ErrInvalidNumber
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if owner, ok := sm.numberOwners[number]; ok {
		return owner, nil
	}
	return domain.ZeroAddress, nil
}

// Stats mirrors getGameStats
func (sm *StateMachine) Stats() domain.GameStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.game == nil {
		return domain.GameStats{Pot: decimal.Zero}
	}
	return sm.game.Stats(sm.now())
}

// Constants returns BET_PRICE, MIN_NUMBER, MAX_NUMBER and friends
func (sm *StateMachine) Constants() Constants {
	return Constants{
		BetPrice:           sm.opts.BetPrice,
		MinNumber:          domain.MinNumber,
		MaxNumber:          domain.MaxNumber,
		GameDuration:       int64(sm.opts.Duration / time.Second),
		WinnerSharePercent: sm.opts.WinnerSharePercent,
		Owner:              sm.opts.Owner,
	}
}

// Owner mirrors owner()
func (sm *StateMachine) Owner() domain.Address {
	return sm.opts.Owner
}

// DrawMode reports the configured candidate set
func (sm *StateMachine) DrawMode() DrawMode {
	return sm.opts.DrawMode
}
