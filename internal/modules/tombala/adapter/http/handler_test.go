package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/frankieli/base_tombala/internal/modules/tombala/machine"
	"github.com/frankieli/base_tombala/internal/modules/tombala/repository/memory"
	"github.com/frankieli/base_tombala/internal/modules/tombala/usecase"
	"github.com/frankieli/base_tombala/internal/modules/wallet"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner      domain.Address = "0x000000000000000000000000000000000000000f"
	cronSecret                = "cron-secret"
)

func player(i int) domain.Address {
	return domain.Address(fmt.Sprintf("0x%040x", i))
}

// tokens maps "player-N" to player(N) and "owner" to the owner
type tokens struct{}

func (tokens) ValidateToken(ctx context.Context, token string) (domain.Address, error) {
	if token == "owner" {
		return owner, nil
	}
	var i int
	if _, err := fmt.Sscanf(token, "player-%d", &i); err == nil {
		return player(i), nil
	}
	return "", errors.New("bad token")
}

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

type testServer struct {
	router *gin.Engine
	clock  *clock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger := wallet.NewMemoryLedger()
	repo := memory.NewGameRepository(ledger)
	clk := &clock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}

	sm := machine.NewStateMachine(repo, machine.DefaultOptions(owner))
	sm.SetClock(clk.Now)
	uc := usecase.NewTombalaUseCase(sm, repo, memory.NewSnapshotRepository(), ledger, nil, usecase.Options{
		Network: "base-sepolia",
	})
	require.NoError(t, sm.Restore(context.Background()))

	r := gin.New()
	NewHandler(uc, tokens{}, cronSecret).RegisterRoutes(r.Group("/api"))
	return &testServer{router: r, clock: clk}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func TestReadRoutes(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/api/game/stats", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["gameId"])
	assert.Equal(t, true, body["isActive"])
	assert.Equal(t, "0", body["pot"])
	assert.Equal(t, float64(86400), body["timeLeft"])

	code, body = s.do(t, http.MethodGet, "/api/game/current-id", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["gameId"])

	code, body = s.do(t, http.MethodGet, "/api/game/constants", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1000000000000000", body["betPrice"])
	assert.Equal(t, float64(25), body["maxNumber"])
	assert.Equal(t, string(owner), body["owner"])

	code, body = s.do(t, http.MethodGet, "/api/game/numbers/7/owner", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(domain.ZeroAddress), body["owner"])

	code, body = s.do(t, http.MethodGet, "/api/game/numbers/26/owner", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidNumber", body["error"])

	code, _ = s.do(t, http.MethodGet, "/api/players/nope/numbers", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPlaceBet(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/bets", "", gin.H{"number": 7})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := s.do(t, http.MethodPost, "/api/bets", "player-1", gin.H{"number": 7})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["transactionHash"], 66)
	assert.Equal(t, float64(1), body["gameId"])

	code, body = s.do(t, http.MethodPost, "/api/bets", "player-2", gin.H{"number": 7})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "NumberAlreadyTaken", body["error"])

	code, body = s.do(t, http.MethodPost, "/api/bets", "player-1", gin.H{"number": 8})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "PlayerAlreadyBet", body["error"])

	code, body = s.do(t, http.MethodPost, "/api/bets", "player-3", gin.H{"number": 9, "value": "1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "IncorrectBetAmount", body["error"])

	code, _ = s.do(t, http.MethodPost, "/api/bets", "player-3", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	addr := player(1).String()
	code, body = s.do(t, http.MethodGet, "/api/players/"+addr+"/bet-status", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["hasBet"])

	code, body = s.do(t, http.MethodGet, "/api/players/"+addr+"/numbers", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{float64(7)}, body["numbers"])

	code, body = s.do(t, http.MethodGet, "/api/game/pot", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1000000000000000", body["pot"])
}

func TestCron(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/cron", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(t, http.MethodGet, "/api/cron", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := s.do(t, http.MethodGet, "/api/cron", cronSecret, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["gameActive"])
	assert.Equal(t, usecase.ActionNone, body["action"])

	code, _ = s.do(t, http.MethodPost, "/api/bets", "player-1", gin.H{"number": 4})
	require.Equal(t, http.StatusOK, code)

	s.clock.Advance(25 * time.Hour)

	code, body = s.do(t, http.MethodPost, "/api/cron", cronSecret, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(4), body["winningNumber"])
	assert.Equal(t, player(1).String(), body["winner"])
	assert.Equal(t, "base-sepolia", body["network"])
	assert.Equal(t, true, body["gameActive"])

	code, body = s.do(t, http.MethodGet, "/api/players/"+player(1).String()+"/balance", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "900000000000000", body["balance"])
}

func TestDrawAndNewGameRoutes(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/draw", "player-1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "GameStillActive", body["error"])

	code, body = s.do(t, http.MethodPost, "/api/games/new", "player-1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "GameStillActive", body["error"])

	s.clock.Advance(25 * time.Hour)

	code, body = s.do(t, http.MethodPost, "/api/draw", "player-1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "NoNumbersToDrawFrom", body["error"])

	code, body = s.do(t, http.MethodPost, "/api/games/new", "player-1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["gameId"])
}

func TestGamesHistory(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/bets", "player-1", gin.H{"number": 11})
	require.Equal(t, http.StatusOK, code)
	s.clock.Advance(25 * time.Hour)
	code, _ = s.do(t, http.MethodPost, "/api/draw", "player-2", nil)
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(t, http.MethodGet, "/api/games?gameId=1", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(11), body["winningNumber"])
	assert.NotEmpty(t, body["serverSeed"])
	assert.Equal(t, []interface{}{float64(11)}, body["candidates"])
	assert.Equal(t, true, body["verified"])

	code, body = s.do(t, http.MethodGet, "/api/games?gameId=99", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Game not found", body["error"])
	assert.Equal(t, float64(99), body["gameId"])

	code, _ = s.do(t, http.MethodGet, "/api/games?gameId=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodGet, "/api/games?limit=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, http.MethodGet, "/api/games", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["totalGames"])
	assert.Equal(t, float64(2), body["currentGameId"])
	assert.Equal(t, "base-sepolia", body["network"])
}

func TestEmergencyWithdraw(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/bets", "player-1", gin.H{"number": 3})
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(t, http.MethodPost, "/api/admin/emergency-withdraw", "player-1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "OwnableUnauthorizedAccount", body["error"])

	code, body = s.do(t, http.MethodPost, "/api/admin/emergency-withdraw", "owner", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1000000000000000", body["amount"])

	code, body = s.do(t, http.MethodGet, "/api/game/pot", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0", body["pot"])
}

func TestSnapshotRoute(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/api/game/snapshot", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["gameId"])
}
