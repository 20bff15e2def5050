package config

import "time"

// --- Shared Configs ---

type ServerConfig struct {
	HTTPPort  string // HTTP port for the API and WebSocket stream
	Name      string // Service name, used in logs
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, console
	LogFile   string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN returns the postgres connection string
func (d DatabaseConfig) DSN() string {
	return "host=" + d.Host + " port=" + d.Port + " user=" + d.User +
		" password=" + d.Password + " dbname=" + d.Name + " sslmode=disable"
}

type RedisConfig struct {
	Host string
	Port string
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type JWTConfig struct {
	Secret   string
	Duration time.Duration
}

// NetworkConfig identifies the chain the game is labelled with
type NetworkConfig struct {
	Name    string
	ChainID int64
}
