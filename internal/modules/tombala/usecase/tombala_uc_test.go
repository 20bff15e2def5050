package usecase

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/frankieli/base_tombala/internal/modules/tombala/machine"
	"github.com/frankieli/base_tombala/internal/modules/tombala/repository/memory"
	"github.com/frankieli/base_tombala/internal/modules/wallet"
	"github.com/frankieli/base_tombala/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner domain.Address = "0x000000000000000000000000000000000000000f"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type broadcast struct {
	gameCode string
	command  string
	data     interface{}
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	events  []broadcast
	private map[string][]broadcast
}

func (b *recordingBroadcaster) SendToPlayer(player string, gameCode string, command string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.private == nil {
		b.private = make(map[string][]broadcast)
	}
	b.private[player] = append(b.private[player], broadcast{gameCode: gameCode, command: command, data: data})
}

func (b *recordingBroadcaster) sentTo(player string) []broadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcast(nil), b.private[player]...)
}

func (b *recordingBroadcaster) Broadcast(gameCode string, command string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcast{gameCode: gameCode, command: command, data: data})
}

func (b *recordingBroadcaster) commands() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.command)
	}
	return out
}

// countingRecords wraps the memory repository and counts ListRange calls
type countingRecords struct {
	*memory.GameRepository
	mu    sync.Mutex
	lists int
	gets  int
}

func (c *countingRecords) ListRange(ctx context.Context, fromID, toID int64) ([]*domain.GameRecord, error) {
	c.mu.Lock()
	c.lists++
	c.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	return c.GameRepository.ListRange(ctx, fromID, toID)
}

func (c *countingRecords) Get(ctx context.Context, gameID int64) (*domain.GameRecord, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.GameRepository.Get(ctx, gameID)
}

type harness struct {
	uc          *TombalaUseCase
	sm          *machine.StateMachine
	clock       *clock
	records     *countingRecords
	snapshots   *memory.SnapshotRepository
	broadcaster *recordingBroadcaster
}

func newHarness(t *testing.T, mutate func(*machine.Options)) *harness {
	t.Helper()

	opts := machine.DefaultOptions(owner)
	if mutate != nil {
		mutate(&opts)
	}

	ledger := wallet.NewMemoryLedger()
	repo := memory.NewGameRepository(ledger)
	h := &harness{
		clock:       &clock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		records:     &countingRecords{GameRepository: repo},
		snapshots:   memory.NewSnapshotRepository(),
		broadcaster: &recordingBroadcaster{},
	}
	h.sm = machine.NewStateMachine(repo, opts)
	h.sm.SetClock(h.clock.Now)
	h.uc = NewTombalaUseCase(h.sm, h.records, h.snapshots, ledger, h.broadcaster, Options{
		Network:         "base-sepolia",
		HistoryCacheTTL: time.Minute,
	})
	require.NoError(t, h.sm.Restore(context.Background()))
	h.uc.Flush()
	return h
}

func player(i int) domain.Address {
	return domain.Address(fmt.Sprintf("0x%040x", i))
}

func TestPlaceBet_ReturnsReceipt(t *testing.T) {
	h := newHarness(t, nil)

	receipt, bet, err := h.uc.PlaceBet(context.Background(), player(1), 12, domain.BetPrice)
	require.NoError(t, err)
	assert.Len(t, receipt.TransactionHash, 66)
	assert.Equal(t, int64(1), receipt.GameID)
	assert.Equal(t, 12, bet.Number)

	_, _, err = h.uc.PlaceBet(context.Background(), player(2), 12, domain.BetPrice)
	assert.ErrorIs(t, err, domain.ErrNumberAlreadyTaken)
}

func TestEventsUpdateSnapshotAndBroadcast(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, _, err := h.uc.PlaceBet(ctx, player(1), 12, domain.BetPrice)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		snap, err := h.snapshots.Load(ctx)
		return err == nil && snap.BetsCount == 1 && len(snap.FilledNumbers) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		for _, c := range h.broadcaster.commands() {
			if c == string(machine.EventBetPlaced) {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	snap, err := h.uc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{12}, snap.FilledNumbers)
	assert.True(t, snap.IsActive(h.clock.Now()))
}

func TestEventsArePushedInCommitOrder(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, _, err := h.uc.PlaceBet(ctx, player(1), 12, domain.BetPrice)
	require.NoError(t, err)
	h.clock.Advance(domain.GameDuration)
	_, record, err := h.uc.DrawWinner(ctx)
	require.NoError(t, err)
	h.uc.Flush()

	assert.Equal(t, []string{
		string(machine.EventNewGameStarted),
		string(machine.EventBetPlaced),
		string(machine.EventGameDrawn),
		string(machine.EventNewGameStarted),
	}, h.broadcaster.commands())

	sent := h.broadcaster.sentTo(player(1).String())
	require.Len(t, sent, 1)
	assert.Equal(t, CommandPrize, sent[0].command)
	notice := sent[0].data.(PrizeNotice)
	assert.Equal(t, int64(1), notice.GameID)
	assert.Equal(t, 12, notice.WinningNumber)
	assert.True(t, notice.Prize.Equal(record.Prize))

	snap, err := h.uc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.GameID)
	assert.Equal(t, string(machine.EventNewGameStarted), snap.LastEvent)
}

// slowSnapshots holds up its first Save so a later save could overtake it
type slowSnapshots struct {
	*memory.SnapshotRepository
	mu    sync.Mutex
	saves int
}

func (s *slowSnapshots) Save(ctx context.Context, snap *domain.Snapshot) error {
	s.mu.Lock()
	s.saves++
	first := s.saves == 1
	s.mu.Unlock()
	if first {
		time.Sleep(50 * time.Millisecond)
	}
	return s.SnapshotRepository.Save(ctx, snap)
}

func TestSnapshotIsNotOverwrittenBySlowerSave(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	ledger := wallet.NewMemoryLedger()
	repo := memory.NewGameRepository(ledger)
	snapshots := &slowSnapshots{SnapshotRepository: memory.NewSnapshotRepository()}

	sm := machine.NewStateMachine(repo, machine.DefaultOptions(owner))
	sm.SetClock(clk.Now)
	uc := NewTombalaUseCase(sm, repo, snapshots, ledger, nil, Options{})
	require.NoError(t, sm.Restore(ctx))
	uc.Flush()

	_, _, err := uc.PlaceBet(ctx, player(1), 1, domain.BetPrice)
	require.NoError(t, err)
	_, _, err = uc.PlaceBet(ctx, player(2), 2, domain.BetPrice)
	require.NoError(t, err)
	uc.Flush()

	snap, err := uc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.BetsCount)
	assert.Equal(t, []int{1, 2}, snap.FilledNumbers)
}

// lockedBuffer is a log sink safe for the logger's flusher goroutine
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

func TestPlaceBet_LogsPlayerOnce(t *testing.T) {
	out := &lockedBuffer{}
	logger.Init(logger.Config{Level: "info", Format: "json", Output: out})
	t.Cleanup(func() { logger.Init(logger.Config{Level: "info", Format: "json"}) })

	h := newHarness(t, nil)
	ctx := logger.WithFields(context.Background(), map[string]interface{}{
		"player": player(3).String(),
	})

	_, _, err := h.uc.PlaceBet(ctx, player(3), 8, domain.BetPrice)
	require.NoError(t, err)
	logger.Flush()

	found := 0
	for _, line := range out.lines() {
		if !strings.Contains(line, `"bet accepted"`) {
			continue
		}
		found++
		assert.Equal(t, 1, strings.Count(line, `"player":`), line)
	}
	assert.Equal(t, 1, found)
}

func TestRunDrawTrigger_ActiveIsNoop(t *testing.T) {
	h := newHarness(t, nil)

	result, err := h.uc.RunDrawTrigger(context.Background())
	require.NoError(t, err)
	assert.True(t, result.GameActive)
	assert.Equal(t, ActionNone, result.Action)
	assert.Empty(t, result.TransactionHash)
	assert.Equal(t, int64(1), h.uc.CurrentGameID(context.Background()))
}

func TestRunDrawTrigger_EmptyGameRestarts(t *testing.T) {
	h := newHarness(t, nil)

	h.clock.Advance(domain.GameDuration)
	result, err := h.uc.RunDrawTrigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionNewGame, result.Action)
	assert.True(t, result.GameActive)
	assert.NotEmpty(t, result.TransactionHash)
	assert.Equal(t, "base-sepolia", result.Network)
	assert.Equal(t, int64(2), h.uc.CurrentGameID(context.Background()))
}

func TestRunDrawTrigger_DrawsWithAutoRestart(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, _, err := h.uc.PlaceBet(ctx, player(1), 4, domain.BetPrice)
	require.NoError(t, err)

	h.clock.Advance(domain.GameDuration)
	result, err := h.uc.RunDrawTrigger(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionDraw, result.Action)
	assert.Equal(t, 4, result.WinningNumber)
	assert.Equal(t, player(1), result.Winner)
	assert.Equal(t, 1, result.BetsCount)
	assert.True(t, result.GameActive)
	assert.Equal(t, int64(2), h.uc.CurrentGameID(ctx))

	// second call in the same tick finds the new game active
	again, err := h.uc.RunDrawTrigger(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, again.Action)
}

func TestRunDrawTrigger_DrawThenStart(t *testing.T) {
	h := newHarness(t, func(o *machine.Options) { o.AutoRestart = false })
	ctx := context.Background()

	_, _, err := h.uc.PlaceBet(ctx, player(1), 4, domain.BetPrice)
	require.NoError(t, err)

	h.clock.Advance(domain.GameDuration)
	result, err := h.uc.RunDrawTrigger(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionDrawNext, result.Action)
	assert.NotEmpty(t, result.NewGameTransactionHash)
	assert.True(t, result.GameActive)
	assert.Equal(t, int64(2), h.uc.CurrentGameID(ctx))
}

func TestKeeperTick(t *testing.T) {
	h := newHarness(t, nil)
	k := NewKeeper(h.uc, time.Minute)

	k.Tick(context.Background())
	assert.Equal(t, int64(1), h.uc.CurrentGameID(context.Background()))

	h.clock.Advance(domain.GameDuration)
	k.Tick(context.Background())
	assert.Equal(t, int64(2), h.uc.CurrentGameID(context.Background()))
}

func TestKeeperStartDisabled(t *testing.T) {
	h := newHarness(t, nil)
	done := make(chan struct{})
	go func() {
		NewKeeper(h.uc, 0).Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled keeper should return immediately")
	}
}

// playRounds plays n games with one bet each; filled-mode draws always
// have a winner.
func playRounds(t *testing.T, h *harness, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, _, err := h.uc.PlaceBet(ctx, player(i+1), i%25+1, domain.BetPrice)
		require.NoError(t, err)
		h.clock.Advance(domain.GameDuration)
		_, _, err = h.uc.DrawWinner(ctx)
		require.NoError(t, err)
	}
}

func TestGameRecord_CachedAndNotFound(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	playRounds(t, h, 2)

	record, err := h.uc.GameRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, player(1), record.Winner)

	_, err = h.uc.GameRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, h.records.gets, "drawn records are cached on draw")

	_, err = h.uc.GameRecord(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrGameNotFound)
}

func TestListGames(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	playRounds(t, h, 4)

	page, err := h.uc.ListGames(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.CurrentGameID)
	assert.Equal(t, 4, page.TotalGames)
	assert.Equal(t, "base-sepolia", page.Network)
	require.Len(t, page.Games, 4)
	assert.Equal(t, int64(4), page.Games[0].GameID, "most recent first")
	assert.Equal(t, int64(1), page.Games[3].GameID)

	// limit counts ids, including the current one
	page, err = h.uc.ListGames(ctx, 3)
	require.NoError(t, err)
	require.Len(t, page.Games, 2)
	assert.Equal(t, int64(4), page.Games[0].GameID)
	assert.Equal(t, int64(3), page.Games[1].GameID)
}

func TestListGames_OnlyWinners(t *testing.T) {
	h := newHarness(t, func(o *machine.Options) { o.DrawMode = machine.DrawModeFull })
	ctx := context.Background()

	wins := 0
	for i := 0; i < 6; i++ {
		_, _, err := h.uc.PlaceBet(ctx, player(i+1), 1, domain.BetPrice)
		require.NoError(t, err)
		h.clock.Advance(domain.GameDuration)
		_, record, err := h.uc.DrawWinner(ctx)
		require.NoError(t, err)
		if record.HasWinner() {
			wins++
		}
	}

	page, err := h.uc.ListGames(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, wins, page.TotalGames)
	for _, g := range page.Games {
		assert.True(t, g.HasWinner())
	}
}

func TestListGames_CollapsesConcurrentRequests(t *testing.T) {
	h := newHarness(t, nil)
	playRounds(t, h, 3)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			page, err := h.uc.ListGames(context.Background(), 10)
			assert.NoError(t, err)
			assert.Equal(t, 3, page.TotalGames)
		}()
	}
	wg.Wait()

	h.records.mu.Lock()
	defer h.records.mu.Unlock()
	assert.Equal(t, 1, h.records.lists)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 1, ClampLimit(0))
	assert.Equal(t, 1, ClampLimit(-5))
	assert.Equal(t, 10, ClampLimit(10))
	assert.Equal(t, 50, ClampLimit(51))
}

func TestEmergencyWithdraw(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, _, err := h.uc.PlaceBet(ctx, player(1), 2, domain.BetPrice)
	require.NoError(t, err)

	_, _, err = h.uc.EmergencyWithdraw(ctx, player(1))
	assert.ErrorIs(t, err, domain.ErrOwnableUnauthorizedAccount)

	receipt, amount, err := h.uc.EmergencyWithdraw(ctx, owner)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.TransactionHash)
	assert.True(t, amount.Equal(domain.BetPrice))
	assert.True(t, h.uc.TotalPot(ctx).IsZero())

	balance, err := h.uc.Balance(ctx, owner)
	require.NoError(t, err)
	assert.True(t, balance.Equal(domain.BetPrice))
}
