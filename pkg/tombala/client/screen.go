package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// State is the screen the player sees
type State string

const (
	StateLoading State = "LOADING"
	StateActive  State = "ACTIVE"
	StateDrawing State = "DRAWING"
	StateResults State = "RESULTS"
)

// NotificationTTL is how long a notification stays visible
const NotificationTTL = 3 * time.Second

type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

type Notification struct {
	Kind      NotificationKind
	Message   string
	ExpiresAt time.Time
}

// CellStatus is how one grid cell renders
type CellStatus string

const (
	CellAvailable CellStatus = "available"
	CellFilled    CellStatus = "filled"
	CellPlayer    CellStatus = "player"
	CellPending   CellStatus = "pending"
)

var (
	ErrInvalidTransition = errors.New("invalid screen transition")
	ErrNotBetting        = errors.New("game is not active")
	ErrCellTaken         = errors.New("number already taken")
	ErrAlreadyBet        = errors.New("already bet in this game")
	ErrBetPending        = errors.New("a bet is still pending")
	ErrNoSelection       = errors.New("no number selected")
)

// DrawOutcome is what the results screen shows
type DrawOutcome struct {
	GameID        int64
	WinningNumber int
	Winner        string
	Prize         decimal.Decimal
}

// Screen models the game UI without rendering it
type Screen struct {
	mu  sync.Mutex
	now func() time.Time

	state     State
	stats     Stats
	fetchedAt time.Time
	filled    map[int]bool
	mine      map[int]bool
	hasBet    bool
	betGame   int64 // game hasBet refers to
	selected  int
	guessed   int // number of the last Guess
	pending   int // submitted and not yet seen by a poll
	accepted  bool
	lastHash  string
	outcome   *DrawOutcome
	notes     []Notification
}

func NewScreen() *Screen {
	return &Screen{
		now:    time.Now,
		state:  StateLoading,
		filled: make(map[int]bool),
		mine:   make(map[int]bool),
	}
}

// SetClock replaces the time source (tests)
func (s *Screen) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Screen) notify(kind NotificationKind, msg string) {
	s.notes = append(s.notes, Notification{
		Kind:      kind,
		Message:   msg,
		ExpiresAt: s.now().Add(NotificationTTL),
	})
}

// Notifications returns the notifications that have not expired yet
func (s *Screen) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	live := s.notes[:0]
	for _, n := range s.notes {
		if now.Before(n.ExpiresAt) {
			live = append(live, n)
		}
	}
	s.notes = live
	return append([]Notification(nil), live...)
}

// ApplyStats feeds a stats fetch. Failures keep the state and raise a
// notification.
func (s *Screen) ApplyStats(stats Stats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.notify(NotifyError, "Failed to load game data")
		return
	}

	if s.stats.GameID != 0 && stats.GameID != s.stats.GameID {
		s.hasBet = false
		if s.accepted {
			s.clearPending()
		}
	}
	s.stats = stats
	s.fetchedAt = s.now()

	if s.state == StateLoading {
		s.state = StateActive
	}
	s.checkCountdown()
}

func (s *Screen) remaining() int64 {
	elapsed := int64(s.now().Sub(s.fetchedAt) / time.Second)
	left := s.stats.TimeLeft - elapsed
	if left < 0 {
		return 0
	}
	return left
}

func (s *Screen) checkCountdown() {
	if s.state == StateActive && s.remaining() == 0 {
		s.state = StateDrawing
	}
}

// Remaining is the local countdown in seconds
func (s *Screen) Remaining() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining()
}

// Tick advances the local countdown
func (s *Screen) Tick() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkCountdown()
	return s.state
}

// ApplyNumbers feeds the filled-number and player polls. A poll may have
// started before the last bet landed, so it never clears a bet the screen
// already knows about: a pending guess stays until its result arrives and a
// poll shows the number, and hasBet stays set for the rest of the game.
func (s *Screen) ApplyNumbers(filled, mine []int, hasBet bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.notify(NotifyError, "Failed to load numbers")
		return
	}

	s.filled = toSet(filled)
	s.mine = toSet(mine)

	switch {
	case hasBet || len(mine) > 0:
		s.markBet()
	case s.betGame != s.stats.GameID:
		s.hasBet = false
	}

	if s.pending != 0 && s.accepted && (s.mine[s.pending] || s.filled[s.pending]) {
		s.clearPending()
	}
	if s.selected != 0 && s.filled[s.selected] {
		s.selected = 0
	}
}

func (s *Screen) markBet() {
	s.hasBet = true
	s.betGame = s.stats.GameID
}

func (s *Screen) clearPending() {
	s.pending = 0
	s.accepted = false
}

func toSet(numbers []int) map[int]bool {
	set := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		set[n] = true
	}
	return set
}

// Select toggles the selected cell
func (s *Screen) Select(number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state != StateActive:
		s.notify(NotifyError, "Game is not active!")
		return ErrNotBetting
	case s.filled[number]:
		s.notify(NotifyError, "This number is already taken!")
		return ErrCellTaken
	case s.hasBet:
		s.notify(NotifyError, "You have already placed a bet in this game!")
		return ErrAlreadyBet
	case s.pending != 0:
		return ErrBetPending
	}

	if s.selected == number {
		s.selected = 0
	} else {
		s.selected = number
	}
	return nil
}

func (s *Screen) Selected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Guess marks the selected cell as submitted and returns it. The cell stays
// disabled until the bet fails or a poll shows it.
func (s *Screen) Guess() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == 0 {
		return 0, ErrNoSelection
	}
	if s.pending != 0 {
		return 0, ErrBetPending
	}
	s.pending = s.selected
	s.guessed = s.selected
	s.accepted = false
	s.selected = 0
	return s.pending, nil
}

// BetResult reports how the submitted guess went
func (s *Screen) BetResult(hash string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	number := s.guessed
	if number == 0 {
		// the round was left while the bet was in flight
		return
	}
	if err != nil {
		if s.pending == number {
			s.clearPending()
		}
		if s.filled[number] && !s.mine[number] {
			s.notify(NotifyError, "This number is already taken!")
		} else {
			s.notify(NotifyError, "Bet failed")
		}
		return
	}

	s.lastHash = hash
	s.markBet()
	if s.pending == number && !s.mine[number] && !s.filled[number] {
		s.accepted = true
	} else if s.pending == number {
		s.clearPending()
	}
	s.notify(NotifySuccess, fmt.Sprintf("Bet successful! Your number: %d", number))
}

// LastBetHash is the transaction hash of the last accepted bet
func (s *Screen) LastBetHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHash
}

// Cell reports how number renders
func (s *Screen) Cell(number int) CellStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.mine[number]:
		return CellPlayer
	case s.filled[number]:
		return CellFilled
	case s.pending == number:
		return CellPending
	default:
		return CellAvailable
	}
}

// CellDisabled reports whether number can no longer be picked
func (s *Screen) CellDisabled(number int) bool {
	return s.Cell(number) != CellAvailable
}

// TriggerDraw moves to DRAWING on the user's request
func (s *Screen) TriggerDraw() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return ErrInvalidTransition
	}
	s.state = StateDrawing
	return nil
}

// ApplyDrawOutcome shows the results of a draw
func (s *Screen) ApplyDrawOutcome(outcome DrawOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateDrawing {
		return ErrInvalidTransition
	}
	s.outcome = &outcome
	s.state = StateResults
	return nil
}

func (s *Screen) Outcome() (DrawOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return DrawOutcome{}, false
	}
	return *s.outcome, true
}

// JoinNewRound leaves the results screen and waits for fresh stats
func (s *Screen) JoinNewRound() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateResults {
		return ErrInvalidTransition
	}
	s.state = StateLoading
	s.outcome = nil
	s.stats = Stats{}
	s.selected = 0
	s.guessed = 0
	s.clearPending()
	s.hasBet = false
	s.betGame = 0
	s.filled = make(map[int]bool)
	s.mine = make(map[int]bool)
	return nil
}

// Stats returns the last applied stats
func (s *Screen) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Observe applies a poller update. Register it with Poller.OnUpdate.
func (s *Screen) Observe(p *Poller, field Field) {
	reads := p.Reads()
	err := reads.Errors[field]

	switch field {
	case FieldFilledNumbers, FieldPlayerNumbers, FieldBetStatus:
		s.ApplyNumbers(reads.FilledNumbers, reads.PlayerNumbers, reads.HasBet, err)
	default:
		if err != nil {
			s.ApplyStats(Stats{}, err)
			return
		}
		if stats, ok := p.GameStats(); ok {
			s.ApplyStats(stats, nil)
		}
	}
}
