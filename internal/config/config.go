package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MonolithConfig holds all configuration for monolith mode
type MonolithConfig struct {
	Tombala TombalaConfig
	Gateway GatewayConfig
}

// LoadMonolithConfig loads all configurations for monolith mode.
// A .env file in the working directory is applied first; real environment
// variables always win over it.
func LoadMonolithConfig() *MonolithConfig {
	_ = godotenv.Load()

	tombalaCfg := LoadTombalaConfig()
	gatewayCfg := LoadGatewayConfig()

	return &MonolithConfig{
		Tombala: *tombalaCfg,
		Gateway: *gatewayCfg,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
