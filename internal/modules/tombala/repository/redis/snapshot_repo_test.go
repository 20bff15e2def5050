package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a live Redis; set REDIS_TEST_ADDR (e.g. localhost:6379) to run.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestSnapshotRepository_SaveLoad(t *testing.T) {
	rdb := newTestClient(t)
	ctx := context.Background()

	key := "tombala:test:" + t.Name()
	repo := NewSnapshotRepository(rdb, key)
	t.Cleanup(func() { rdb.Del(context.Background(), key, key+":game") })

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrGameNotFound)

	endsAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	snap := &domain.Snapshot{
		GameID:        7,
		Pot:           decimal.RequireFromString("3000000000000000"),
		BetsCount:     3,
		EndsAt:        endsAt,
		FilledNumbers: []int{2, 9, 25},
		LastEvent:     "bet_placed",
	}
	require.NoError(t, repo.Save(ctx, snap))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), loaded.GameID)
	assert.True(t, loaded.Pot.Equal(snap.Pot))
	assert.Equal(t, []int{2, 9, 25}, loaded.FilledNumbers)
	assert.True(t, loaded.EndsAt.Equal(endsAt))

	fields, err := rdb.HGetAll(ctx, key+":game").Result()
	require.NoError(t, err)
	assert.Equal(t, "3", fields["bets_count"])
}

func TestSnapshotKeyFor(t *testing.T) {
	assert.Equal(t, "tombala:state", SnapshotKeyFor(""))
	assert.Equal(t, "tombala:state:base-sepolia", SnapshotKeyFor("base-sepolia"))
}
