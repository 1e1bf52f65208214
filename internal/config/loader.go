package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, an optional file, and env
// vars. Order of precedence (low -> high):
//  1. defaults (Default())
//  2. file (YAML) if GRIDFAX_CONFIG is set
//  3. env (prefix GRIDFAX_)
func Load() (*Config, error) {
	base := Default()

	k := koanf.New(".")

	if path := os.Getenv("GRIDFAX_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Environment variables: GRIDFAX_ADDR, GRIDFAX_DATABASE_URL, ...
	// Keys keep their underscores to match the koanf tags on Config.
	envProvider := env.Provider("GRIDFAX_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "gridfax_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.DatabaseURL == "" {
		return errors.New("database_url must not be empty")
	}
	if c.CacheTTLMinutes <= 0 {
		return errors.New("cache_ttl_minutes must be positive")
	}
	if c.HistoryLimit <= 0 {
		return errors.New("history_limit must be positive")
	}
	if c.SchedulerHour < 0 || c.SchedulerHour > 23 {
		return fmt.Errorf("scheduler_hour must be between 0 and 23, got %d", c.SchedulerHour)
	}
	return nil
}
