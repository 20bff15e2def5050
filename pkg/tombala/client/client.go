// Package client is a Go client for the tombala HTTP API. Besides the plain
// request methods it carries the Poller, which refreshes game reads on
// independent intervals, and Screen, a headless model of the game UI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// BetPrice is the fixed stake sent with every bet, in wei
var BetPrice = decimal.New(1, 15)

// APIError is a non-2xx response. Name carries the revert name for
// lifecycle errors, e.g. "NumberAlreadyTaken".
type APIError struct {
	StatusCode int
	Name       string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" && e.Details != e.Name {
		return fmt.Sprintf("tombala api %d: %s: %s", e.StatusCode, e.Name, e.Details)
	}
	return fmt.Sprintf("tombala api %d: %s", e.StatusCode, e.Name)
}

// IsRevert reports whether err is a lifecycle revert with the given name
func IsRevert(err error, name string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest && apiErr.Name == name
}

// Stats mirrors getGameStats
type Stats struct {
	GameID    int64           `json:"gameId"`
	IsActive  bool            `json:"isActive"`
	Pot       decimal.Decimal `json:"pot"`
	BetsCount int             `json:"betsCount"`
	TimeLeft  int64           `json:"timeLeft"`
}

type Constants struct {
	BetPrice           decimal.Decimal `json:"betPrice"`
	MinNumber          int             `json:"minNumber"`
	MaxNumber          int             `json:"maxNumber"`
	GameDuration       int64           `json:"gameDuration"`
	WinnerSharePercent int             `json:"winnerSharePercent"`
	Owner              string          `json:"owner"`
}

type GameRecord struct {
	GameID        int64           `json:"gameId"`
	WinningNumber int             `json:"winningNumber"`
	Winner        string          `json:"winner"`
	Prize         decimal.Decimal `json:"prize"`
	TotalBets     int             `json:"totalBets"`
	TotalPot      decimal.Decimal `json:"totalPot"`
	Rollover      decimal.Decimal `json:"rollover"`
	SeedHash      string          `json:"seedHash"`
	ServerSeed    string          `json:"serverSeed"`
	Candidates    []int           `json:"candidates"`
	DrawnAt       time.Time       `json:"drawnAt"`
	// Verified is only set on single-game lookups
	Verified bool `json:"verified,omitempty"`
}

type HistoryPage struct {
	Games         []GameRecord `json:"games"`
	TotalGames    int          `json:"totalGames"`
	CurrentGameID int64        `json:"currentGameId"`
	Network       string       `json:"network"`
}

type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	GameID          int64  `json:"gameId"`
}

type BetReceipt struct {
	Receipt
	BetID  string `json:"betId"`
	Number int    `json:"number"`
}

type DrawResult struct {
	Receipt
	WinningNumber int             `json:"winningNumber"`
	Winner        string          `json:"winner"`
	Prize         decimal.Decimal `json:"prize"`
	TotalBets     int             `json:"totalBets"`
}

type WithdrawResult struct {
	Receipt
	Amount decimal.Decimal `json:"amount"`
}

type TriggerResult struct {
	Message                string `json:"message"`
	GameActive             bool   `json:"gameActive"`
	Action                 string `json:"action"`
	GameID                 int64  `json:"gameId"`
	BetsCount              int    `json:"betsCount"`
	TransactionHash        string `json:"transactionHash,omitempty"`
	NewGameTransactionHash string `json:"newGameTransactionHash,omitempty"`
	WinningNumber          int    `json:"winningNumber,omitempty"`
	Winner                 string `json:"winner,omitempty"`
	Network                string `json:"network"`
}

type Token struct {
	Address   string `json:"address"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// Client talks to one tombala service
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for baseURL, e.g. "http://localhost:8080"
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the player token used for writes
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errBody struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error == "" {
			errBody.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Name: errBody.Error, Details: errBody.Details}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.get(ctx, "/api/game/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CurrentGameID(ctx context.Context) (int64, error) {
	var out struct {
		GameID int64 `json:"gameId"`
	}
	err := c.get(ctx, "/api/game/current-id", &out)
	return out.GameID, err
}

func (c *Client) IsGameActive(ctx context.Context) (bool, error) {
	var out struct {
		IsActive bool `json:"isActive"`
	}
	err := c.get(ctx, "/api/game/active", &out)
	return out.IsActive, err
}

func (c *Client) TotalPot(ctx context.Context) (decimal.Decimal, error) {
	var out struct {
		Pot decimal.Decimal `json:"pot"`
	}
	err := c.get(ctx, "/api/game/pot", &out)
	return out.Pot, err
}

// RemainingTime returns the seconds left in the betting window
func (c *Client) RemainingTime(ctx context.Context) (int64, error) {
	var out struct {
		TimeLeft int64 `json:"timeLeft"`
	}
	err := c.get(ctx, "/api/game/remaining-time", &out)
	return out.TimeLeft, err
}

func (c *Client) FilledNumbers(ctx context.Context) ([]int, error) {
	var out struct {
		Numbers []int `json:"numbers"`
	}
	err := c.get(ctx, "/api/game/filled-numbers", &out)
	return out.Numbers, err
}

func (c *Client) Constants(ctx context.Context) (*Constants, error) {
	var out Constants
	if err := c.get(ctx, "/api/game/constants", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) NumberOwner(ctx context.Context, number int) (string, error) {
	var out struct {
		Owner string `json:"owner"`
	}
	err := c.get(ctx, "/api/game/numbers/"+strconv.Itoa(number)+"/owner", &out)
	return out.Owner, err
}

func (c *Client) HasPlayerBet(ctx context.Context, player string) (bool, error) {
	var out struct {
		HasBet bool `json:"hasBet"`
	}
	err := c.get(ctx, "/api/players/"+url.PathEscape(player)+"/bet-status", &out)
	return out.HasBet, err
}

func (c *Client) PlayerNumbers(ctx context.Context, player string) ([]int, error) {
	var out struct {
		Numbers []int `json:"numbers"`
	}
	err := c.get(ctx, "/api/players/"+url.PathEscape(player)+"/numbers", &out)
	return out.Numbers, err
}

// Balance returns prizes credited to player, in wei
func (c *Client) Balance(ctx context.Context, player string) (decimal.Decimal, error) {
	var out struct {
		Balance decimal.Decimal `json:"balance"`
	}
	err := c.get(ctx, "/api/players/"+url.PathEscape(player)+"/balance", &out)
	return out.Balance, err
}

func (c *Client) Game(ctx context.Context, gameID int64) (*GameRecord, error) {
	var out GameRecord
	if err := c.get(ctx, "/api/games?gameId="+strconv.FormatInt(gameID, 10), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Games lists recent won games. limit <= 0 uses the server default.
func (c *Client) Games(ctx context.Context, limit int) (*HistoryPage, error) {
	path := "/api/games"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out HistoryPage
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PlaceBet claims number for the token's player, staking value wei
func (c *Client) PlaceBet(ctx context.Context, number int, value decimal.Decimal) (*BetReceipt, error) {
	body := map[string]interface{}{"number": number, "value": value.String()}
	var out BetReceipt
	if err := c.do(ctx, http.MethodPost, "/api/bets", c.bearer(), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DrawWinner(ctx context.Context) (*DrawResult, error) {
	var out DrawResult
	if err := c.do(ctx, http.MethodPost, "/api/draw", c.bearer(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StartNewGame(ctx context.Context) (*Receipt, error) {
	var out Receipt
	if err := c.do(ctx, http.MethodPost, "/api/games/new", c.bearer(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EmergencyWithdraw(ctx context.Context) (*WithdrawResult, error) {
	var out WithdrawResult
	if err := c.do(ctx, http.MethodPost, "/api/admin/emergency-withdraw", c.bearer(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TriggerCron fires the draw trigger with the cron secret
func (c *Client) TriggerCron(ctx context.Context, secret string) (*TriggerResult, error) {
	var out TriggerResult
	if err := c.do(ctx, http.MethodPost, "/api/cron", secret, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DevToken asks a dev-login enabled server for a player token
func (c *Client) DevToken(ctx context.Context, address string) (*Token, error) {
	var out Token
	if err := c.do(ctx, http.MethodPost, "/api/auth/token", "", map[string]string{"address": address}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", c.bearer(), nil, nil)
}
