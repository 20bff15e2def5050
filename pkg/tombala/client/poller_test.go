package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() PollerConfig {
	return PollerConfig{
		GameID:        20 * time.Millisecond,
		Active:        20 * time.Millisecond,
		Pot:           20 * time.Millisecond,
		FilledNumbers: 10 * time.Millisecond,
		TimeLeft:      20 * time.Millisecond,
		Player:        20 * time.Millisecond,
	}
}

func TestDefaultPollerConfig(t *testing.T) {
	cfg := DefaultPollerConfig()
	assert.Equal(t, 5*time.Second, cfg.GameID)
	assert.Equal(t, 5*time.Second, cfg.Active)
	assert.Equal(t, 5*time.Second, cfg.Pot)
	assert.Equal(t, 3*time.Second, cfg.FilledNumbers)
	assert.Equal(t, 5*time.Second, cfg.TimeLeft)
}

func TestPoller_AnonymousSkipsPlayerReads(t *testing.T) {
	srv := newAPIServer(t)
	p := NewPoller(New(srv.URL), "", fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := p.GameStats()
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	// the first poll is the initial refresh; wait for the ticker to fire too
	require.Eventually(t, func() bool {
		return srv.hits.count("/api/game/filled-numbers") > 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	stats, _ := p.GameStats()
	assert.Equal(t, int64(1), stats.GameID)
	assert.True(t, stats.IsActive)
	assert.Zero(t, srv.hits.count("/api/players/"+playerAddr(1)+"/bet-status"))
}

func TestPoller_PlaceBetThenRepoll(t *testing.T) {
	srv := newAPIServer(t)
	ctx := context.Background()
	addr := playerAddr(7)
	p := NewPoller(loggedIn(t, srv, addr), addr, fastConfig())

	p.RefreshAll(ctx)
	assert.False(t, p.Reads().HasBet)

	receipt, err := p.PlaceBet(ctx, 9)
	require.NoError(t, err)
	status := p.BetStatus()
	assert.False(t, status.Pending)
	assert.NoError(t, status.Err)
	assert.Equal(t, receipt.TransactionHash, status.Hash)

	// reads only change after a poll
	assert.Empty(t, p.Reads().FilledNumbers)
	p.RefreshAll(ctx)
	reads := p.Reads()
	assert.Equal(t, []int{9}, reads.FilledNumbers)
	assert.Equal(t, []int{9}, reads.PlayerNumbers)
	assert.True(t, reads.HasBet)

	_, err = p.PlaceBet(ctx, 10)
	assert.True(t, IsRevert(err, "PlayerAlreadyBet"))
	assert.Error(t, p.BetStatus().Err)
}

func TestPoller_FailureKeepsLastValue(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
			return
		}
		_, _ = w.Write([]byte(`{"gameId":4}`))
	}))
	defer srv.Close()

	p := NewPoller(New(srv.URL), "", fastConfig())
	var updates atomic.Int32
	p.OnUpdate(func(Field) { updates.Add(1) })

	p.Refresh(context.Background(), FieldGameID)
	assert.Equal(t, int64(4), p.Reads().GameID)

	fail.Store(true)
	p.Refresh(context.Background(), FieldGameID)
	reads := p.Reads()
	assert.Equal(t, int64(4), reads.GameID)
	assert.Error(t, reads.Errors[FieldGameID])
	assert.Equal(t, int32(2), updates.Load())
}
