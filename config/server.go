package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// ServerConfig configures the local points dev server.
type ServerConfig struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT"      envDefault:"8081"  validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"required,oneof=debug info warn error"`

	Token string `env:"POINTS_API_TOKEN,required" validate:"required"`

	// Empty DatabaseURL selects the in-memory store.
	DatabaseURL     string `env:"DATABASE_URL"`
	SeedWallets     int    `env:"DEV_SEED_WALLETS"  envDefault:"1200"    validate:"min=0,max=1000000"`
	IngestBatch     int    `env:"INGEST_BATCH"      envDefault:"250"     validate:"min=1,max=100000"`
	DefaultSeasonID string `env:"DEFAULT_SEASON_ID" envDefault:"default" validate:"required"`
}

func LoadServer() (*ServerConfig, error) {
	cfg := &ServerConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *ServerConfig) SlogLevel() slog.Level {
	return parseLevel(c.LogLevel)
}
