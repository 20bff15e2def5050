package client

import (
	"context"
	"sync"
	"time"

	"github.com/frankieli/base_tombala/pkg/logger"
	"github.com/shopspring/decimal"
)

// Field names one polled read
type Field string

const (
	FieldGameID        Field = "game_id"
	FieldActive        Field = "active"
	FieldPot           Field = "pot"
	FieldFilledNumbers Field = "filled_numbers"
	FieldTimeLeft      Field = "time_left"
	FieldBetStatus     Field = "bet_status"
	FieldPlayerNumbers Field = "player_numbers"
)

// PollerConfig holds one refresh interval per read
type PollerConfig struct {
	GameID        time.Duration
	Active        time.Duration
	Pot           time.Duration
	FilledNumbers time.Duration
	TimeLeft      time.Duration
	Player        time.Duration
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		GameID:        5 * time.Second,
		Active:        5 * time.Second,
		Pot:           5 * time.Second,
		FilledNumbers: 3 * time.Second,
		TimeLeft:      5 * time.Second,
		Player:        5 * time.Second,
	}
}

// Reads is the latest value of every poller. Each field is refreshed on
// its own schedule, so values may come from different moments.
type Reads struct {
	GameID        int64
	IsActive      bool
	Pot           decimal.Decimal
	FilledNumbers []int
	TimeLeft      int64
	HasBet        bool
	PlayerNumbers []int

	Loaded map[Field]time.Time
	Errors map[Field]error
}

// BetStatus tracks the last PlaceBet call
type BetStatus struct {
	Pending bool
	Err     error
	Hash    string
	Number  int
}

// Poller keeps game reads fresh with independent pollers
type Poller struct {
	client *Client
	cfg    PollerConfig
	player string

	mu       sync.RWMutex
	reads    Reads
	bet      BetStatus
	handlers []func(Field)
}

// NewPoller creates a poller. Player reads only run when player is set.
func NewPoller(client *Client, player string, cfg PollerConfig) *Poller {
	return &Poller{
		client: client,
		cfg:    cfg,
		player: player,
		reads: Reads{
			Pot:    decimal.Zero,
			Loaded: make(map[Field]time.Time),
			Errors: make(map[Field]error),
		},
	}
}

// OnUpdate registers a callback run after every poll of any field
func (p *Poller) OnUpdate(handler func(Field)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, handler)
}

func (p *Poller) fields() map[Field]time.Duration {
	fields := map[Field]time.Duration{
		FieldGameID:        p.cfg.GameID,
		FieldActive:        p.cfg.Active,
		FieldPot:           p.cfg.Pot,
		FieldFilledNumbers: p.cfg.FilledNumbers,
		FieldTimeLeft:      p.cfg.TimeLeft,
	}
	if p.player != "" {
		fields[FieldBetStatus] = p.cfg.Player
		fields[FieldPlayerNumbers] = p.cfg.Player
	}
	return fields
}

// Start launches every poller and blocks until ctx is done
func (p *Poller) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for field, interval := range p.fields() {
		if interval <= 0 {
			continue
		}
		wg.Add(1)
		go func(field Field, interval time.Duration) {
			defer wg.Done()
			p.run(ctx, field, interval)
		}(field, interval)
	}
	wg.Wait()
}

func (p *Poller) run(ctx context.Context, field Field, interval time.Duration) {
	p.Refresh(ctx, field)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx, field)
		}
	}
}

// RefreshAll polls every field once
func (p *Poller) RefreshAll(ctx context.Context) {
	for field := range p.fields() {
		p.Refresh(ctx, field)
	}
}

// Refresh polls one field now. A failed poll keeps the previous value and
// records the error.
func (p *Poller) Refresh(ctx context.Context, field Field) {
	var (
		apply func(r *Reads)
		err   error
	)

	switch field {
	case FieldGameID:
		var v int64
		v, err = p.client.CurrentGameID(ctx)
		apply = func(r *Reads) { r.GameID = v }
	case FieldActive:
		var v bool
		v, err = p.client.IsGameActive(ctx)
		apply = func(r *Reads) { r.IsActive = v }
	case FieldPot:
		var v decimal.Decimal
		v, err = p.client.TotalPot(ctx)
		apply = func(r *Reads) { r.Pot = v }
	case FieldFilledNumbers:
		var v []int
		v, err = p.client.FilledNumbers(ctx)
		apply = func(r *Reads) { r.FilledNumbers = v }
	case FieldTimeLeft:
		var v int64
		v, err = p.client.RemainingTime(ctx)
		apply = func(r *Reads) { r.TimeLeft = v }
	case FieldBetStatus:
		if p.player == "" {
			return
		}
		var v bool
		v, err = p.client.HasPlayerBet(ctx, p.player)
		apply = func(r *Reads) { r.HasBet = v }
	case FieldPlayerNumbers:
		if p.player == "" {
			return
		}
		var v []int
		v, err = p.client.PlayerNumbers(ctx, p.player)
		apply = func(r *Reads) { r.PlayerNumbers = v }
	default:
		return
	}

	p.mu.Lock()
	if err != nil {
		p.reads.Errors[field] = err
	} else {
		apply(&p.reads)
		p.reads.Loaded[field] = time.Now()
		delete(p.reads.Errors, field)
	}
	handlers := append([]func(Field){}, p.handlers...)
	p.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		logger.Warn(ctx).Err(err).Str("field", string(field)).Msg("poll failed")
	}

	for _, h := range handlers {
		h(field)
	}
}

// Reads returns a copy of the latest values
func (p *Poller) Reads() Reads {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := p.reads
	out.FilledNumbers = append([]int(nil), p.reads.FilledNumbers...)
	out.PlayerNumbers = append([]int(nil), p.reads.PlayerNumbers...)
	out.Loaded = make(map[Field]time.Time, len(p.reads.Loaded))
	for k, v := range p.reads.Loaded {
		out.Loaded[k] = v
	}
	out.Errors = make(map[Field]error, len(p.reads.Errors))
	for k, v := range p.reads.Errors {
		out.Errors[k] = v
	}
	return out
}

// GameStats combines the four game pollers. ok is false until all of
// them have loaded once. BetsCount is derived from the filled numbers.
func (p *Poller) GameStats() (Stats, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, f := range []Field{FieldGameID, FieldActive, FieldPot, FieldTimeLeft} {
		if _, ok := p.reads.Loaded[f]; !ok {
			return Stats{}, false
		}
	}
	return Stats{
		GameID:    p.reads.GameID,
		IsActive:  p.reads.IsActive,
		Pot:       p.reads.Pot,
		BetsCount: len(p.reads.FilledNumbers),
		TimeLeft:  p.reads.TimeLeft,
	}, true
}

// PlaceBet submits one bet at BetPrice. The pollers pick up its effect on
// their next refresh.
func (p *Poller) PlaceBet(ctx context.Context, number int) (*BetReceipt, error) {
	p.mu.Lock()
	p.bet = BetStatus{Pending: true, Number: number}
	p.mu.Unlock()

	receipt, err := p.client.PlaceBet(ctx, number, BetPrice)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.bet.Pending = false
	if err != nil {
		p.bet.Err = err
		return nil, err
	}
	p.bet.Hash = receipt.TransactionHash
	return receipt, nil
}

func (p *Poller) BetStatus() BetStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bet
}
