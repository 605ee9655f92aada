// Package boot turns the loaded configuration into validated runtime settings.
package boot

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/memohai/sticker-export-bot/internal/config"
)

// Environment variables that take precedence over the config file.
const (
	EnvBotToken       = "TELEGRAM_BOT_TOKEN"
	EnvTelegramAPIURL = "TELEGRAM_API_URL"
	EnvRateLimit      = "RATE_LIMIT"
	EnvRateLimitBurst = "RATE_LIMIT_BURST"
	EnvHTTPAddr       = "HTTP_ADDR"
	EnvStateDriver    = "STATE_DRIVER"
)

// RuntimeConfig holds parsed runtime settings (bot credentials, admission limits, timeouts).
// Values may be overridden by environment variables (e.g. TELEGRAM_BOT_TOKEN, RATE_LIMIT).
type RuntimeConfig struct {
	BotToken       string
	APIURL         string
	LocalFiles     bool
	PollTimeout    int
	RequestTimeout time.Duration
	// MaxAssetBytes bounds one sticker download.
	MaxAssetBytes int64

	RatePerMinute int
	RateBurst     int
	RateMaxKeys   int
	RateIdleTTL   time.Duration

	ServerAddr  string
	StateDriver string
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	return buildRuntimeConfig(cfg, os.Getenv)
}

func buildRuntimeConfig(cfg config.Config, getenv func(string) string) (*RuntimeConfig, error) {
	ret := &RuntimeConfig{
		BotToken:      cfg.Telegram.BotToken,
		APIURL:        cfg.Telegram.APIURL,
		LocalFiles:    cfg.Telegram.LocalFiles,
		PollTimeout:   cfg.Telegram.PollTimeout,
		MaxAssetBytes: cfg.Export.MaxAssetBytes,
		RatePerMinute: cfg.RateLimit.PerMinute,
		RateBurst:     cfg.RateLimit.Burst,
		RateMaxKeys:   cfg.RateLimit.MaxKeys,
		ServerAddr:    cfg.Server.Addr,
		StateDriver:   cfg.State.Driver,
	}

	if value := getenv(EnvBotToken); value != "" {
		ret.BotToken = value
	}
	if value := getenv(EnvTelegramAPIURL); value != "" {
		ret.APIURL = value
	}
	if value := getenv(EnvHTTPAddr); value != "" {
		ret.ServerAddr = value
	}
	if value := getenv(EnvStateDriver); value != "" {
		ret.StateDriver = value
	}

	var err error
	if value := getenv(EnvRateLimit); value != "" {
		if ret.RatePerMinute, err = strconv.Atoi(value); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvRateLimit, err)
		}
	}
	if value := getenv(EnvRateLimitBurst); value != "" {
		if ret.RateBurst, err = strconv.Atoi(value); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvRateLimitBurst, err)
		}
	}

	if strings.TrimSpace(ret.BotToken) == "" {
		return nil, errors.New("telegram bot token is required")
	}
	ret.APIURL = strings.TrimRight(strings.TrimSpace(ret.APIURL), "/")
	if ret.APIURL == "" {
		ret.APIURL = config.DefaultTelegramAPIURL
	}
	if ret.RatePerMinute <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", ret.RatePerMinute)
	}
	if ret.RateBurst <= 0 {
		return nil, fmt.Errorf("rate limit burst must be positive, got %d", ret.RateBurst)
	}
	if ret.PollTimeout <= 0 {
		ret.PollTimeout = config.DefaultPollTimeout
	}
	if ret.MaxAssetBytes <= 0 {
		ret.MaxAssetBytes = config.DefaultMaxAssetBytes
	}

	if ret.RequestTimeout, err = parseDuration(cfg.Telegram.RequestTimeout, config.DefaultRequestTimeout); err != nil {
		return nil, fmt.Errorf("invalid request timeout: %w", err)
	}
	if ret.RateIdleTTL, err = parseDuration(cfg.RateLimit.IdleTTL, config.DefaultRateIdleTTL); err != nil {
		return nil, fmt.Errorf("invalid rate limit idle ttl: %w", err)
	}

	switch ret.StateDriver {
	case config.StateDriverMemory, config.StateDriverSQLite, config.StateDriverPostgres:
	default:
		return nil, fmt.Errorf("unknown state driver %q (use: memory, sqlite, postgres)", ret.StateDriver)
	}
	return ret, nil
}

func parseDuration(raw, fallback string) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		raw = fallback
	}
	return time.ParseDuration(raw)
}
