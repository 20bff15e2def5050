package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/frankieli/base_tombala/internal/config"
	authUseCase "github.com/frankieli/base_tombala/internal/modules/auth/usecase"
	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/frankieli/base_tombala/pkg/logger"
	"github.com/frankieli/base_tombala/pkg/tombala/client"
	"github.com/joho/godotenv"
)

// command is one ops subcommand
type command struct {
	usage string
	run   func(ctx context.Context, cfg *config.TombalaConfig, api *client.Client, args []string) (interface{}, error)
}

var commands = map[string]command{
	"token": {
		usage: "token <address>            mint a player token with JWT_SECRET",
		run:   runToken,
	},
	"cron": {
		usage: "cron                       fire the draw trigger with CRON_SECRET",
		run:   runCron,
	},
	"stats": {
		usage: "stats                      print the current game stats",
		run:   runStats,
	},
	"history": {
		usage: "history [gameId]           print recent winners or one game record",
		run:   runHistory,
	},
	"balance": {
		usage: "balance <address>          print prizes credited to an address",
		run:   runBalance,
	},
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ops [-api URL] <command> [args]")
	for _, name := range []string{"token", "cron", "stats", "history", "balance"} {
		fmt.Fprintln(os.Stderr, "  "+commands[name].usage)
	}
}

func main() {
	apiURL := flag.String("api", "", "Tombala API base URL (default http://localhost:$TOMBALA_HTTP_PORT)")
	limit := flag.Int("limit", 0, "History page size")
	flag.Usage = usage
	flag.Parse()

	_ = godotenv.Load()
	logger.Init(logger.Config{Level: "warn", Format: "console", Output: os.Stderr})

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		usage()
		os.Exit(2)
	}

	cfg := config.LoadTombalaConfig()
	base := *apiURL
	if base == "" {
		base = "http://localhost:" + cfg.Server.HTTPPort
	}
	historyLimit = *limit

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out, err := cmd.run(ctx, cfg, client.New(base), flag.Args()[1:])
	if err != nil {
		logger.Error(ctx).Err(err).Str("command", flag.Arg(0)).Msg("❌ ops command failed")
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error(ctx).Err(err).Msg("encode output")
		os.Exit(1)
	}
}

var historyLimit int

func runToken(ctx context.Context, cfg *config.TombalaConfig, _ *client.Client, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("token needs exactly one address")
	}
	player, err := domain.ParseAddress(args[0])
	if err != nil {
		return nil, err
	}

	auth := authUseCase.NewAuthUseCase(cfg.JWT.Secret, cfg.JWT.Duration)
	token, expiresAt, err := auth.IssueToken(ctx, player)
	if err != nil {
		return nil, err
	}
	return client.Token{
		Address:   player.String(),
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	}, nil
}

func runCron(ctx context.Context, cfg *config.TombalaConfig, api *client.Client, _ []string) (interface{}, error) {
	if cfg.CronSecret == "" {
		return nil, fmt.Errorf("CRON_SECRET is not set")
	}
	return api.TriggerCron(ctx, cfg.CronSecret)
}

func runStats(ctx context.Context, _ *config.TombalaConfig, api *client.Client, _ []string) (interface{}, error) {
	stats, err := api.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"gameId":    stats.GameID,
		"isActive":  stats.IsActive,
		"pot":       stats.Pot.String(),
		"potEth":    domain.FormatEther(stats.Pot),
		"betsCount": stats.BetsCount,
		"timeLeft":  (time.Duration(stats.TimeLeft) * time.Second).String(),
	}, nil
}

func runHistory(ctx context.Context, _ *config.TombalaConfig, api *client.Client, args []string) (interface{}, error) {
	if len(args) == 0 {
		return api.Games(ctx, historyLimit)
	}
	gameID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("gameId must be an integer: %w", err)
	}
	return api.Game(ctx, gameID)
}

func runBalance(ctx context.Context, _ *config.TombalaConfig, api *client.Client, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("balance needs exactly one address")
	}
	balance, err := api.Balance(ctx, args[0])
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"address":    args[0],
		"balanceWei": balance.String(),
		"balanceEth": domain.FormatEther(balance),
	}, nil
}
