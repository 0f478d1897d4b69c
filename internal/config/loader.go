package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SKILLRATE_CONFIG is set
//  3. env (prefix SKILLRATE_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("SKILLRATE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: SKILLRATE_ADDR, SKILLRATE_QUEUE_SIZE, ...
	// Keys map to the flat koanf tags on the struct; underscores are
	// preserved.
	envProvider := env.Provider("SKILLRATE_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "skillrate_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.Store {
	case StoreMemory, StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store)
	}
	if c.Store == StorePostgres && c.PostgresURL == "" {
		return fmt.Errorf("%w: postgres store requires postgres_url", ErrInvalidConfig)
	}
	if c.Tau <= 0 || c.SolverTolerance <= 0 || c.SolverBudget <= 0 {
		return fmt.Errorf("%w: rating tunables must be positive", ErrInvalidConfig)
	}
	return nil
}
