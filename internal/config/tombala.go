package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	NetworkBase        = "base"
	NetworkBaseSepolia = "base-sepolia"

	chainIDBase        = 8453
	chainIDBaseSepolia = 84532
)

// TombalaConfig holds configuration for the Tombala game service
type TombalaConfig struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Network      NetworkConfig
	RepoType     string // memory, db
	SnapshotType string // memory, redis
	CronSecret   string
	DevLogin     bool  // exposes POST /api/auth/token for any address
	NodeID       int64 // snowflake node for bet ids, unique per instance
	Settings     GameSettings

	KeeperInterval  time.Duration // 0 disables the in-process draw keeper
	HistoryCacheTTL time.Duration
}

// GameSettings are the lifecycle parameters
type GameSettings struct {
	OwnerAddress       string
	BetPriceWei        string
	Duration           time.Duration
	AutoRestart        bool
	DrawMode           string // filled, full
	WinnerSharePercent int
}

// Validate rejects settings the lifecycle cannot run with
func (s GameSettings) Validate() error {
	if s.WinnerSharePercent < 1 || s.WinnerSharePercent > 100 {
		return fmt.Errorf("WINNER_SHARE_PERCENT: %d not in 1..100", s.WinnerSharePercent)
	}
	if s.Duration <= 0 {
		return fmt.Errorf("GAME_DURATION: %s must be positive", s.Duration)
	}
	switch s.DrawMode {
	case "filled", "full":
	default:
		return fmt.Errorf("DRAW_MODE: unknown mode %q", s.DrawMode)
	}
	return nil
}

// LoadTombalaConfig loads configuration for the Tombala service
func LoadTombalaConfig() *TombalaConfig {
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "tombala_user"),
		Password: getEnv("DB_PASSWORD", "tombala_pass"),
		Name:     getEnv("DB_NAME", "tombala_db"),
	}

	redisConfig := RedisConfig{
		Host: getEnv("REDIS_HOST", "localhost"),
		Port: getEnv("REDIS_PORT", "6379"),
	}

	return &TombalaConfig{
		Server: ServerConfig{
			HTTPPort:  getEnv("TOMBALA_HTTP_PORT", "8080"),
			Name:      "tombala-service",
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
			LogFile:   getEnv("LOG_FILE", "logs/tombala/monolith.log"),
		},
		Database: dbConfig,
		Redis:    redisConfig,
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", "dev-secret-key"),
			Duration: getEnvDuration("JWT_DURATION", 24*time.Hour),
		},
		Network:      ResolveNetwork(getEnv("TOMBALA_NETWORK", ""), getEnv("APP_ENV", "production")),
		RepoType:     getEnv("TOMBALA_REPO_TYPE", "memory"),
		SnapshotType: getEnv("TOMBALA_SNAPSHOT_TYPE", "memory"),
		CronSecret:   getEnv("CRON_SECRET", ""),
		DevLogin:     getEnvBool("AUTH_DEV_LOGIN", false),
		NodeID:       int64(getEnvInt("SNOWFLAKE_NODE_ID", 1)),
		Settings: GameSettings{
			OwnerAddress:       getEnv("OWNER_ADDRESS", "0x0000000000000000000000000000000000000001"),
			BetPriceWei:        getEnv("BET_PRICE_WEI", "1000000000000000"),
			Duration:           getEnvDuration("GAME_DURATION", 24*time.Hour),
			AutoRestart:        getEnvBool("AUTO_RESTART", true),
			DrawMode:           getEnv("DRAW_MODE", "filled"),
			WinnerSharePercent: getEnvInt("WINNER_SHARE_PERCENT", 90),
		},
		KeeperInterval:  getEnvDuration("KEEPER_INTERVAL", time.Minute),
		HistoryCacheTTL: getEnvDuration("HISTORY_CACHE_TTL", 10*time.Minute),
	}
}

// ResolveNetwork picks the network label. An explicit name wins; otherwise
// development environments run against base-sepolia and everything else
// against base.
func ResolveNetwork(explicit, appEnv string) NetworkConfig {
	switch strings.ToLower(strings.TrimSpace(explicit)) {
	case NetworkBaseSepolia, "sepolia":
		return NetworkConfig{Name: NetworkBaseSepolia, ChainID: chainIDBaseSepolia}
	case NetworkBase, "mainnet":
		return NetworkConfig{Name: NetworkBase, ChainID: chainIDBase}
	}

	if strings.EqualFold(appEnv, "development") {
		return NetworkConfig{Name: NetworkBaseSepolia, ChainID: chainIDBaseSepolia}
	}
	return NetworkConfig{Name: NetworkBase, ChainID: chainIDBase}
}
