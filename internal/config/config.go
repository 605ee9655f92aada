// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultTelegramAPIURL = "https://api.telegram.org"
	DefaultPollTimeout    = 30
	DefaultRequestTimeout = "60s"
	DefaultRatePerMinute  = 20
	DefaultRateBurst      = 5
	DefaultRateMaxKeys    = 100_000
	DefaultRateIdleTTL    = "1h"
	DefaultFFmpegPath     = "ffmpeg"
	DefaultMaxAssetBytes  = 20 << 20
	DefaultStateDriver    = "memory"
	DefaultSQLitePath     = "data/state.db"
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "stickers"
	DefaultPGSSLMode      = "disable"
)

// State store drivers.
const (
	StateDriverMemory   = "memory"
	StateDriverSQLite   = "sqlite"
	StateDriverPostgres = "postgres"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Telegram  TelegramConfig  `toml:"telegram"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Export    ExportConfig    `toml:"export"`
	State     StateConfig     `toml:"state"`
	Postgres  PostgresConfig  `toml:"postgres"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the health/metrics HTTP listen address. Empty disables the server.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// TelegramConfig holds the bot token and Bot API endpoint.
// LocalFiles is set when the bot runs next to a local Bot API server and can read its files directly.
type TelegramConfig struct {
	BotToken       string `toml:"bot_token"`
	APIURL         string `toml:"api_url"`
	LocalFiles     bool   `toml:"local_files"`
	PollTimeout    int    `toml:"poll_timeout"`
	RequestTimeout string `toml:"request_timeout"`
}

// RateLimitConfig holds per-user admission parameters.
type RateLimitConfig struct {
	PerMinute int    `toml:"per_minute"`
	Burst     int    `toml:"burst"`
	MaxKeys   int    `toml:"max_keys"`
	IdleTTL   string `toml:"idle_ttl"`
}

// ExportConfig holds conversion settings.
type ExportConfig struct {
	FFmpegPath      string `toml:"ffmpeg_path"`
	TempDir         string `toml:"temp_dir"`
	MaxAssetBytes   int64  `toml:"max_asset_bytes"`
	PackConcurrency int    `toml:"pack_concurrency"`
}

// StateConfig selects the conversation state backend (memory, sqlite, postgres).
type StateConfig struct {
	Driver     string `toml:"driver"`
	SQLitePath string `toml:"sqlite_path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Telegram: TelegramConfig{
			APIURL:         DefaultTelegramAPIURL,
			PollTimeout:    DefaultPollTimeout,
			RequestTimeout: DefaultRequestTimeout,
		},
		RateLimit: RateLimitConfig{
			PerMinute: DefaultRatePerMinute,
			Burst:     DefaultRateBurst,
			MaxKeys:   DefaultRateMaxKeys,
			IdleTTL:   DefaultRateIdleTTL,
		},
		Export: ExportConfig{
			FFmpegPath:    DefaultFFmpegPath,
			MaxAssetBytes: DefaultMaxAssetBytes,
		},
		State: StateConfig{
			Driver:     DefaultStateDriver,
			SQLitePath: DefaultSQLitePath,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
	}
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
