package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice domain.Address = "0x00000000000000000000000000000000000000a1"
	bob   domain.Address = "0x00000000000000000000000000000000000000b0"
)

func TestGameRepository_AppendBetUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewGameRepository(nil)

	_, err := repo.Latest(ctx)
	assert.ErrorIs(t, err, domain.ErrGameNotFound)

	now := time.Now()
	game := domain.NewGame(1, now, time.Hour, decimal.Zero, decimal.Zero, "h", "s")
	require.NoError(t, repo.Create(ctx, game))

	updated := *game
	updated.Pot = domain.BetPrice
	updated.BetsCount = 1
	require.NoError(t, repo.AppendBet(ctx, &updated, domain.NewBet(1, alice, 7, domain.BetPrice, now)))

	assert.ErrorIs(t, repo.AppendBet(ctx, &updated, domain.NewBet(1, bob, 7, domain.BetPrice, now)), domain.ErrNumberAlreadyTaken)
	assert.ErrorIs(t, repo.AppendBet(ctx, &updated, domain.NewBet(1, alice, 8, domain.BetPrice, now)), domain.ErrPlayerAlreadyBet)

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.BetsCount)
	assert.True(t, latest.Pot.Equal(domain.BetPrice))

	bets, err := repo.BetsByGame(ctx, 1)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, alice, bets[0].Player)
}

func TestGameRepository_RecordsAreWrittenOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewGameRepository(nil)

	for id := int64(1); id <= 3; id++ {
		game := domain.NewGame(id, time.Now(), time.Hour, decimal.Zero, decimal.Zero, "h", "s")
		require.NoError(t, repo.Create(ctx, game))
		game.Drawn = true
		require.NoError(t, repo.Finalize(ctx, game, &domain.GameRecord{GameID: id, WinningNumber: int(id), Winner: alice}))
	}

	assert.ErrorIs(t, repo.Finalize(ctx, &domain.Game{GameID: 2}, &domain.GameRecord{GameID: 2}), domain.ErrGameAlreadyDrawn)

	record, err := repo.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, record.WinningNumber)

	_, err = repo.Get(ctx, 9)
	assert.ErrorIs(t, err, domain.ErrGameNotFound)

	records, err := repo.ListRange(ctx, 2, 3)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(3), records[0].GameID)
	assert.Equal(t, int64(2), records[1].GameID)

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest.GameID)
}

type stubLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	fail     error
}

func newStubLedger() *stubLedger {
	return &stubLedger{balances: make(map[string]decimal.Decimal)}
}

func (l *stubLedger) Credit(ctx context.Context, account string, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return decimal.Zero, l.fail
	}
	l.balances[account] = l.balances[account].Add(amount)
	return l.balances[account], nil
}

func (l *stubLedger) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

func TestGameRepository_FinalizeCreditsPayouts(t *testing.T) {
	ctx := context.Background()
	ledger := newStubLedger()
	repo := NewGameRepository(ledger)

	game := domain.NewGame(1, time.Now(), time.Hour, domain.BetPrice, decimal.Zero, "h", "s")
	require.NoError(t, repo.Create(ctx, game))

	drawn := *game
	drawn.Drawn = true
	payout := domain.Payout{Account: alice.String(), Amount: domain.BetPrice, Reason: "prize:game:1"}

	ledger.fail = errors.New("ledger down")
	err := repo.Finalize(ctx, &drawn, &domain.GameRecord{GameID: 1, Winner: alice}, payout)
	assert.ErrorIs(t, err, ledger.fail)

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, latest.Drawn)
	_, err = repo.Get(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrGameNotFound)

	ledger.fail = nil
	require.NoError(t, repo.Finalize(ctx, &drawn, &domain.GameRecord{GameID: 1, Winner: alice}, payout))

	balance, _ := ledger.Balance(ctx, alice.String())
	assert.True(t, balance.Equal(domain.BetPrice))

	assert.ErrorIs(t, repo.Finalize(ctx, &drawn, &domain.GameRecord{GameID: 1, Winner: alice}, payout), domain.ErrGameAlreadyDrawn)
	balance, _ = ledger.Balance(ctx, alice.String())
	assert.True(t, balance.Equal(domain.BetPrice), "second finalize pays nothing")
}

func TestGameRepository_UpdateWithoutLedgerRejectsPayouts(t *testing.T) {
	ctx := context.Background()
	repo := NewGameRepository(nil)

	game := domain.NewGame(1, time.Now(), time.Hour, domain.BetPrice, decimal.Zero, "h", "s")
	require.NoError(t, repo.Create(ctx, game))

	drained := *game
	drained.Pot = decimal.Zero
	assert.Error(t, repo.Update(ctx, &drained, domain.Payout{Account: bob.String(), Amount: domain.BetPrice}))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, latest.Pot.Equal(domain.BetPrice))
}

func TestSnapshotRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepository()

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrGameNotFound)

	snap := &domain.Snapshot{GameID: 4, FilledNumbers: []int{1, 2}}
	require.NoError(t, repo.Save(ctx, snap))
	snap.FilledNumbers[0] = 99

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), loaded.GameID)
	assert.Equal(t, []int{1, 2}, loaded.FilledNumbers)
}
