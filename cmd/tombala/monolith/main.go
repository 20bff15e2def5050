package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers
	"os/signal"
	"syscall"
	"time"

	"github.com/frankieli/base_tombala/internal/config"
	authHttp "github.com/frankieli/base_tombala/internal/modules/auth/adapter/http"
	authUseCase "github.com/frankieli/base_tombala/internal/modules/auth/usecase"
	gatewayHttp "github.com/frankieli/base_tombala/internal/modules/gateway/adapter/http"
	gatewayLocal "github.com/frankieli/base_tombala/internal/modules/gateway/adapter/local"
	gatewayUseCase "github.com/frankieli/base_tombala/internal/modules/gateway/usecase"
	"github.com/frankieli/base_tombala/internal/modules/gateway/ws"
	tombalaHttp "github.com/frankieli/base_tombala/internal/modules/tombala/adapter/http"
	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/frankieli/base_tombala/internal/modules/tombala/machine"
	tombalaDB "github.com/frankieli/base_tombala/internal/modules/tombala/repository/db"
	tombalaMemory "github.com/frankieli/base_tombala/internal/modules/tombala/repository/memory"
	tombalaRedis "github.com/frankieli/base_tombala/internal/modules/tombala/repository/redis"
	"github.com/frankieli/base_tombala/internal/modules/tombala/usecase"
	"github.com/frankieli/base_tombala/internal/modules/wallet"
	"github.com/frankieli/base_tombala/pkg/logger"
	"github.com/frankieli/base_tombala/pkg/netutil"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// storage groups the persistence chosen by config
type storage struct {
	games   domain.GameRepository
	records domain.GameRecordRepository
	ledger  domain.PayoutLedger
	closers []func() error
}

func main() {
	pprofPort := flag.String("pprof-port", "", "Port to run pprof server on (e.g., 6060)")
	background := flag.Bool("d", false, "Run in background mode (disable console logging)")
	portFallback := flag.Bool("port-fallback", false, "Use a random port when the configured one is taken")
	flag.Parse()

	cfg := config.LoadMonolithConfig()
	tc := cfg.Tombala

	logger.InitWithFile(tc.Server.LogFile, tc.Server.LogLevel, tc.Server.LogFormat, !*background)
	defer logger.Flush()

	if *pprofPort != "" {
		go func() {
			addr := "localhost:" + *pprofPort
			logger.InfoGlobal().Str("addr", addr).Msg("📈 Starting pprof server")
			if err := http.ListenAndServe(addr, nil); err != nil {
				logger.ErrorGlobal().Err(err).Msg("Failed to start pprof server")
			}
		}()
	}

	fmt.Printf("🚀 Starting Tombala Monolith... Logs are being written to %s (rotating)\n", tc.Server.LogFile)
	logger.InfoGlobal().
		Str("network", tc.Network.Name).
		Int64("chain_id", tc.Network.ChainID).
		Msg("🎮 Starting Tombala Monolith...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Lifecycle settings
	opts, err := machineOptions(tc.Settings)
	if err != nil {
		logger.FatalGlobal().Err(err).Msg("Invalid game settings")
	}

	if err := domain.SetNodeID(tc.NodeID); err != nil {
		logger.FatalGlobal().Err(err).Msg("Invalid SNOWFLAKE_NODE_ID")
	}

	// 2. Storage
	store, err := openStorage(ctx, &tc)
	if err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to open storage")
	}
	defer func() {
		for _, closeFn := range store.closers {
			_ = closeFn()
		}
	}()

	snapshots, err := openSnapshots(ctx, &tc)
	if err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to open snapshot store")
	}

	// 3. Tombala module
	stateMachine := machine.NewStateMachine(store.games, opts)
	tombalaUC := usecase.NewTombalaUseCase(stateMachine, store.records, snapshots, store.ledger, nil, usecase.Options{
		Network:         tc.Network.Name,
		HistoryCacheTTL: tc.HistoryCacheTTL,
	})
	if err := stateMachine.Restore(ctx); err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to restore game state")
	}
	if err := tombalaUC.SaveSnapshot(ctx, "restored"); err != nil {
		logger.ErrorGlobal().Err(err).Msg("Initial snapshot failed")
	}
	logger.InfoGlobal().
		Int64("game_id", stateMachine.CurrentGameID()).
		Str("owner", opts.Owner.String()).
		Str("draw_mode", string(stateMachine.DrawMode())).
		Msg("✅ Tombala module initialized")

	// 4. Gateway module
	wsManager := ws.NewManager(cfg.Gateway.WebSocket)
	tombalaUC.SetBroadcaster(gatewayLocal.NewBroadcaster(wsManager))
	gatewayUC := gatewayUseCase.NewGatewayUseCase(tombalaUC)
	logger.InfoGlobal().Msg("✅ Gateway module initialized")

	// 5. Auth module
	authUC := authUseCase.NewAuthUseCase(tc.JWT.Secret, tc.JWT.Duration)
	if tc.DevLogin {
		logger.WarnGlobal().Msg("⚠️ Dev login enabled: tokens are issued for any address")
	}

	// 6. HTTP
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "gameId": tombalaUC.CurrentGameID(c.Request.Context())})
	})

	api := router.Group("/api")
	authHttp.NewHandler(authUC, tc.DevLogin).RegisterRoutes(api.Group("/auth"))
	tombalaHttp.NewHandler(tombalaUC, authUC, tc.CronSecret).RegisterRoutes(api)
	gatewayHttp.NewHandler(gatewayUC, wsManager, authUC).RegisterRoutes(router)

	lis, port, err := netutil.Listen(ctx, tc.Server.HTTPPort, *portFallback)
	if err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to listen")
	}
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.InfoGlobal().
		Int("port", port).
		Str("api_url", fmt.Sprintf("http://localhost:%d/api", port)).
		Str("ws_url", fmt.Sprintf("ws://localhost:%d/ws", port)).
		Dur("keeper_interval", tc.KeeperInterval).
		Msg("🚀 Tombala Monolith running")

	// 7. Run until a signal arrives
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsManager.Run(gctx)
		return nil
	})

	g.Go(func() error {
		usecase.NewKeeper(tombalaUC, tc.KeeperInterval).Start(gctx)
		return nil
	})

	g.Go(func() error {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.InfoGlobal().Msg("🛑 Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.ErrorGlobal().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.ErrorGlobal().Err(err).Msg("Monolith stopped with error")
	}

	// Persist the final state for the next start
	tombalaUC.Flush()
	if err := tombalaUC.SaveSnapshot(context.Background(), "shutdown"); err != nil {
		logger.ErrorGlobal().Err(err).Msg("Final snapshot failed")
	}
	logger.InfoGlobal().Msg("👋 Server exited properly")
}

func machineOptions(s config.GameSettings) (machine.Options, error) {
	owner := domain.ZeroAddress
	if s.OwnerAddress != "" {
		addr, err := domain.ParseAddress(s.OwnerAddress)
		if err != nil {
			return machine.Options{}, fmt.Errorf("OWNER_ADDRESS: %w", err)
		}
		owner = addr
	}

	betPrice, err := domain.ParseWei(s.BetPriceWei)
	if err != nil {
		return machine.Options{}, fmt.Errorf("BET_PRICE_WEI: %w", err)
	}
	if !betPrice.IsPositive() {
		return machine.Options{}, fmt.Errorf("BET_PRICE_WEI: must be positive")
	}
	if err := s.Validate(); err != nil {
		return machine.Options{}, err
	}

	opts := machine.DefaultOptions(owner)
	opts.BetPrice = betPrice
	opts.Duration = s.Duration
	opts.WinnerSharePercent = s.WinnerSharePercent
	opts.AutoRestart = s.AutoRestart
	opts.DrawMode = machine.DrawMode(s.DrawMode)
	return opts, nil
}

func openStorage(ctx context.Context, tc *config.TombalaConfig) (*storage, error) {
	if tc.RepoType != "db" {
		ledger := wallet.NewMemoryLedger()
		repo := tombalaMemory.NewGameRepository(ledger)
		logger.InfoGlobal().Msg("  ✅ Repository: Memory")
		return &storage{games: repo, records: repo, ledger: ledger}, nil
	}

	gormLog := logger.NewGormLogger()
	db, err := gorm.Open(postgres.Open(tc.Database.DSN()), &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := tombalaDB.AutoMigrate(db); err != nil {
		return nil, err
	}
	if err := wallet.AutoMigrate(db); err != nil {
		return nil, err
	}
	logger.InfoGlobal().Msg("  ✅ Repository: Postgres")

	ledger := wallet.NewDBLedger(db)
	repo := tombalaDB.NewGameRepository(db, ledger)
	return &storage{
		games:   repo,
		records: repo,
		ledger:  ledger,
		closers: []func() error{sqlDB.Close},
	}, nil
}

func openSnapshots(ctx context.Context, tc *config.TombalaConfig) (domain.SnapshotStore, error) {
	if tc.SnapshotType != "redis" {
		logger.InfoGlobal().Msg("  ✅ Snapshot store: Memory")
		return tombalaMemory.NewSnapshotRepository(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: tc.Redis.Addr(),
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	key := tombalaRedis.SnapshotKeyFor(tc.Network.Name)
	logger.InfoGlobal().Str("addr", tc.Redis.Addr()).Str("key", key).Msg("  ✅ Snapshot store: Redis")
	return tombalaRedis.NewSnapshotRepository(rdb, key), nil
}
