package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/url"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/frankieli/base_tombala/pkg/logger"
	"github.com/frankieli/base_tombala/pkg/tombala/client"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// Config holds the robot configuration
type Config struct {
	Host      string
	UserCount int
	Drawer    bool // robot 1 calls draw when the countdown ends
}

// Robot is a simulated player driving the same poller and screen model
// as the web client
type Robot struct {
	ID      int
	Address string
	Host    string
	Client  *client.Client
	Poller  *client.Poller
	Screen  *client.Screen
	Conn    *websocket.Conn
	token   string
	drawer  bool
	ctx     context.Context
}

// PushMessage is one message from the event stream
type PushMessage struct {
	Game    string          `json:"game"`
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data"`
}

type pushData struct {
	GameID  int64           `json:"gameId"`
	Payload json.RawMessage `json:"payload"`
}

type drawnPayload struct {
	WinningNumber int             `json:"winningNumber"`
	Winner        string          `json:"winner"`
	Prize         decimal.Decimal `json:"prize"`
}

type prizePayload struct {
	GameID        int64           `json:"gameId"`
	WinningNumber int             `json:"winningNumber"`
	Prize         decimal.Decimal `json:"prize"`
}

func main() {
	host := flag.String("host", "localhost:8080", "Server host address")
	users := flag.Int("users", 10, "Number of concurrent players (max 25 can bet per game)")
	drawer := flag.Bool("drawer", true, "Let robot 1 call draw when the countdown ends")
	flag.Parse()

	cfg := Config{
		Host:      *host,
		UserCount: *users,
		Drawer:    *drawer,
	}

	logger.Init(logger.Config{
		Level:  "info",
		Format: "console",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx).
		Int("users", cfg.UserCount).
		Str("host", cfg.Host).
		Msg("🤖 Starting Test Robot")

	base := rand.Int63n(1 << 40)
	var wg sync.WaitGroup
	for i := 0; i < cfg.UserCount; i++ {
		time.Sleep(20 * time.Millisecond)
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			robot := NewRobot(ctx, id, cfg, fmt.Sprintf("0x%040x", base+int64(id)))
			if err := robot.Run(); err != nil {
				logger.Error(ctx).Int("robot_id", id).Err(err).Msg("Robot failed")
			}
		}(i + 1)
	}

	<-ctx.Done()
	logger.Info(context.Background()).Msg("🛑 Stopping robots...")
	wg.Wait()
}

func NewRobot(ctx context.Context, id int, cfg Config, address string) *Robot {
	c := client.New("http://" + cfg.Host)
	return &Robot{
		ID:      id,
		Address: address,
		Host:    cfg.Host,
		Client:  c,
		Poller:  client.NewPoller(c, address, client.DefaultPollerConfig()),
		Screen:  client.NewScreen(),
		drawer:  cfg.Drawer && id == 1,
		ctx: logger.WithFields(ctx, map[string]interface{}{
			"robot_id": id,
			"player":   address,
		}),
	}
}

func (r *Robot) Run() error {
	// 1. Login
	if err := r.Login(); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	logger.Info(r.ctx).Msg("Robot logged in")

	// 2. Connect WebSocket
	if err := r.ConnectWS(); err != nil {
		return fmt.Errorf("websocket connect failed: %w", err)
	}
	defer r.Conn.Close()
	logger.Info(r.ctx).Msg("Robot connected to WebSocket")

	// 3. Poll and play
	r.Poller.OnUpdate(func(f client.Field) { r.Screen.Observe(r.Poller, f) })
	go r.Poller.Start(r.ctx)
	go r.ListenLoop()

	r.PlayLoop()
	return nil
}

func (r *Robot) Login() error {
	var err error
	for i := 0; i < 3; i++ {
		if i > 0 {
			time.Sleep(time.Second * time.Duration(i))
			logger.Info(r.ctx).Int("retry", i).Msg("Retrying login...")
		}

		var tok *client.Token
		tok, err = r.Client.DevToken(r.ctx, r.Address)
		if err != nil {
			continue
		}
		r.token = tok.Token
		r.Client.SetToken(tok.Token)
		return nil
	}
	return fmt.Errorf("login failed after 3 retries: %w", err)
}

func (r *Robot) ConnectWS() error {
	u := url.URL{Scheme: "ws", Host: r.Host, Path: "/ws", RawQuery: "token=" + url.QueryEscape(r.token)}
	c, _, err := websocket.DefaultDialer.DialContext(r.ctx, u.String(), nil)
	if err != nil {
		return err
	}
	r.Conn = c
	return nil
}

func (r *Robot) ListenLoop() {
	go func() {
		<-r.ctx.Done()
		r.Conn.Close()
	}()

	for {
		_, message, err := r.Conn.ReadMessage()
		if err != nil {
			if r.ctx.Err() == nil {
				logger.Error(r.ctx).Err(err).Msg("Read error")
			}
			return
		}

		var msg PushMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn(r.ctx).Err(err).Msg("Failed to parse message")
			continue
		}

		var data pushData
		_ = json.Unmarshal(msg.Data, &data)

		switch msg.Command {
		case "game_drawn":
			var drawn drawnPayload
			if err := json.Unmarshal(data.Payload, &drawn); err != nil {
				logger.Warn(r.ctx).Err(err).Msg("Failed to parse game_drawn payload")
				continue
			}
			_ = r.Screen.TriggerDraw()
			_ = r.Screen.ApplyDrawOutcome(client.DrawOutcome{
				GameID:        data.GameID,
				WinningNumber: drawn.WinningNumber,
				Winner:        drawn.Winner,
				Prize:         drawn.Prize,
			})
			logger.Info(r.ctx).
				Int64("game_id", data.GameID).
				Int("winning_number", drawn.WinningNumber).
				Bool("won", drawn.Winner == r.Address).
				Msg("Saw result")
		case "new_game_started":
			// an expired empty game restarts without a draw
			if r.Screen.State() == client.StateDrawing {
				_ = r.Screen.ApplyDrawOutcome(client.DrawOutcome{GameID: data.GameID - 1})
			}
			if err := r.Screen.JoinNewRound(); err == nil {
				r.Poller.RefreshAll(r.ctx)
			}
			logger.Info(r.ctx).Int64("game_id", data.GameID).Msg("New round")
		case "bet_placed":
			logger.Debug(r.ctx).Int64("game_id", data.GameID).Msg("Bet placed")
		case "prize":
			var prize prizePayload
			if err := json.Unmarshal(msg.Data, &prize); err != nil {
				logger.Warn(r.ctx).Err(err).Msg("Failed to parse prize")
				continue
			}
			logger.Info(r.ctx).
				Int64("game_id", prize.GameID).
				Str("prize", prize.Prize.String()).
				Msg("🏆 Won")
		}
	}
}

// PlayLoop ticks the screen once a second and acts on its state
func (r *Robot) PlayLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
		}

		for _, n := range r.Screen.Notifications() {
			logger.Debug(r.ctx).Str("kind", string(n.Kind)).Msg(n.Message)
		}

		switch r.Screen.Tick() {
		case client.StateActive:
			r.PlaceBet()
		case client.StateDrawing:
			if r.drawer {
				r.Draw()
			}
		}
	}
}

func (r *Robot) PlaceBet() {
	if r.Poller.Reads().HasBet || r.Poller.BetStatus().Pending {
		return
	}

	// Random delay to simulate human behavior
	time.Sleep(time.Duration(rand.Intn(3000)) * time.Millisecond)

	var free []int
	for n := 1; n <= 25; n++ {
		if !r.Screen.CellDisabled(n) {
			free = append(free, n)
		}
	}
	if len(free) == 0 {
		return
	}

	if err := r.Screen.Select(free[rand.Intn(len(free))]); err != nil {
		return
	}
	number, err := r.Screen.Guess()
	if err != nil {
		return
	}

	receipt, err := r.Poller.PlaceBet(r.ctx, number)
	if err != nil {
		r.Screen.BetResult("", err)
		logger.Warn(r.ctx).Err(err).Int("number", number).Msg("Bet rejected")
		return
	}
	r.Screen.BetResult(receipt.TransactionHash, nil)
	logger.Info(r.ctx).Int("number", number).Str("tx_hash", receipt.TransactionHash).Msg("Placed bet")
}

func (r *Robot) Draw() {
	result, err := r.Client.DrawWinner(r.ctx)
	switch {
	case err == nil:
		logger.Info(r.ctx).Int("winning_number", result.WinningNumber).Str("winner", result.Winner).Msg("Drew winner")
	case client.IsRevert(err, "NoNumbersToDrawFrom"):
		if _, err := r.Client.StartNewGame(r.ctx); err != nil {
			logger.Warn(r.ctx).Err(err).Msg("Start new game failed")
		}
	case client.IsRevert(err, "GameStillActive"), client.IsRevert(err, "GameAlreadyDrawn"):
		r.Poller.RefreshAll(r.ctx)
	default:
		logger.Warn(r.ctx).Err(err).Msg("Draw failed")
	}
}
