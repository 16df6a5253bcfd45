package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// ErrMissingConfig is returned when a required setting (base URL or token) is absent.
var ErrMissingConfig = errors.New("missing required config")

// Config is the resolved, immutable parameter set for one rebuild run.
type Config struct {
	Env      string `env:"ENV"       envDefault:"local" json:"env"       validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  json:"log_level" validate:"required,oneof=debug info warn error"`

	BaseURL  string `env:"POINTS_API_BASE_URL" json:"base_url" validate:"required,url"`
	Token    string `env:"POINTS_API_TOKEN"    json:"token"    validate:"required"`
	SeasonID string `env:"SEASON_ID"           json:"season_id"`

	RecalcLimit     int  `env:"RECALC_LIMIT"      envDefault:"500" json:"recalc_limit"      validate:"min=1"`
	RecalcFast      bool `env:"RECALC_FAST"                        json:"recalc_fast"`
	RecalcMaxRounds int  `env:"RECALC_MAX_ROUNDS" envDefault:"0"   json:"recalc_max_rounds" validate:"min=0"` // 0 = unbounded

	MaxIngestRounds     int `env:"MAX_INGEST_ROUNDS"     envDefault:"240" json:"max_ingest_rounds"     validate:"min=1"`
	IngestWindowSeconds int `env:"INGEST_WINDOW_SECONDS" envDefault:"0"   json:"ingest_window_seconds" validate:"min=0"` // 0 = not sent

	MaxRetries         int `env:"MAX_RETRIES"           envDefault:"8"     json:"max_retries"           validate:"min=0"`
	CallTimeoutMS      int `env:"CALL_TIMEOUT_MS"       envDefault:"45000" json:"call_timeout_ms"       validate:"min=1,max=3600000"`
	RetryBaseDelayMS   int `env:"RETRY_BASE_DELAY_MS"   envDefault:"3000"  json:"retry_base_delay_ms"   validate:"min=0,max=3600000"`
	IngestRoundDelayMS int `env:"INGEST_ROUND_DELAY_MS" envDefault:"1200"  json:"ingest_round_delay_ms" validate:"min=0,max=3600000"`

	SkipReset  bool `env:"SKIP_RESET"  json:"skip_reset"`
	SkipIngest bool `env:"SKIP_INGEST" json:"skip_ingest"`

	PushgatewayURL string `env:"PUSHGATEWAY_URL" json:"pushgateway_url,omitempty" validate:"omitempty,url"`
}

// Load resolves Config from the process environment.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom resolves Config from the given key/value set instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.SeasonID = strings.TrimSpace(cfg.SeasonID)

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: POINTS_API_BASE_URL is not set", ErrMissingConfig)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: POINTS_API_TOKEN is not set", ErrMissingConfig)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	return parseLevel(c.LogLevel)
}

func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMS) * time.Millisecond
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

func (c *Config) IngestRoundDelay() time.Duration {
	return time.Duration(c.IngestRoundDelayMS) * time.Millisecond
}

// Redacted returns a copy safe to print: the bearer token is masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Token != "" {
		out.Token = "****"
	}
	return out
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
