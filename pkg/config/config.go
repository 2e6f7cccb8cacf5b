// Package config loads the catalog browser's settings: built-in defaults,
// then an optional YAML file, then a .env file, then FINDYOURCAR_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/WessleyAI/findyourcar/engine/domain"
	"github.com/WessleyAI/findyourcar/engine/vpic"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FINDYOURCAR_"

// Config holds all runtime settings.
type Config struct {
	Port           string        `yaml:"port"`
	ProviderURL    string        `yaml:"provider_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      float64       `yaml:"rate_limit"`
	RateBurst      int           `yaml:"rate_burst"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	Workers        int           `yaml:"workers"`
	MaxPerMake     int           `yaml:"max_per_make"`
	// Makes restricts loading to a subset of domain.AllowedMakes, in the
	// given order. Empty means all of them.
	Makes        []string      `yaml:"makes"`
	SearchDelay  time.Duration `yaml:"search_delay"`
	Seed         uint64        `yaml:"seed"`
	NATSURL      string        `yaml:"nats_url"`
	EventSubject string        `yaml:"event_subject"`
	CORSOrigin   string        `yaml:"cors_origin"`
	LogLevel     string        `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:           "8080",
		ProviderURL:    vpic.DefaultBaseURL,
		RequestTimeout: 15 * time.Second,
		RateLimit:      5,
		RateBurst:      3,
		RetryAttempts:  1,
		Workers:        3,
		MaxPerMake:     9,
		SearchDelay:    time.Second,
		EventSubject:   "findyourcar.catalog.loaded",
		CORSOrigin:     "*",
		LogLevel:       "info",
	}
}

// Load builds a Config. path names an optional YAML file; "" skips it. A
// missing .env in the working directory is ignored.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("config: .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	c.Port = envOr("PORT", c.Port)
	c.ProviderURL = envOr("PROVIDER_URL", c.ProviderURL)
	c.NATSURL = envOr("NATS_URL", c.NATSURL)
	c.EventSubject = envOr("EVENT_SUBJECT", c.EventSubject)
	c.CORSOrigin = envOr("CORS_ORIGIN", c.CORSOrigin)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)

	var errs []error
	parse := func(key string, set func(string) error) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s=%q: %w", EnvPrefix, key, v, err))
			}
		}
	}
	parse("MAKES", func(v string) error {
		c.Makes = nil
		for _, m := range strings.Split(v, ",") {
			if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
				c.Makes = append(c.Makes, m)
			}
		}
		return nil
	})
	parse("REQUEST_TIMEOUT", durationInto(&c.RequestTimeout))
	parse("SEARCH_DELAY", durationInto(&c.SearchDelay))
	parse("WORKERS", intInto(&c.Workers))
	parse("MAX_PER_MAKE", intInto(&c.MaxPerMake))
	parse("RETRY_ATTEMPTS", intInto(&c.RetryAttempts))
	parse("RATE_BURST", intInto(&c.RateBurst))
	parse("RATE_LIMIT", func(v string) (err error) {
		c.RateLimit, err = strconv.ParseFloat(v, 64)
		return err
	})
	parse("SEED", func(v string) (err error) {
		c.Seed, err = strconv.ParseUint(v, 10, 64)
		return err
	})
	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return fallback
}

func durationInto(dst *time.Duration) func(string) error {
	return func(v string) (err error) {
		*dst, err = time.ParseDuration(v)
		return err
	}
}

func intInto(dst *int) func(string) error {
	return func(v string) (err error) {
		*dst, err = strconv.Atoi(v)
		return err
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("config: "+format, args...))
		}
	}
	check(c.Port != "", "port is required")
	check(c.ProviderURL != "", "provider_url is required")
	check(c.RequestTimeout > 0, "request_timeout must be positive, got %s", c.RequestTimeout)
	check(c.RateLimit > 0, "rate_limit must be positive, got %g", c.RateLimit)
	check(c.RateBurst >= 1, "rate_burst must be at least 1, got %d", c.RateBurst)
	check(c.RetryAttempts >= 1, "retry_attempts must be at least 1, got %d", c.RetryAttempts)
	check(c.Workers >= 1, "workers must be at least 1, got %d", c.Workers)
	check(c.MaxPerMake >= 1, "max_per_make must be at least 1, got %d", c.MaxPerMake)
	check(c.SearchDelay >= 0, "search_delay must not be negative, got %s", c.SearchDelay)
	check(c.EventSubject != "", "event_subject is required")
	for _, m := range c.Makes {
		if err := domain.ValidateMake(m); err != nil {
			errs = append(errs, fmt.Errorf("config: makes: %w", err))
		}
	}
	_, err := ParseLevel(c.LogLevel)
	check(err == nil, "%v", err)
	return errors.Join(errs...)
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Provider returns the vpic client settings.
func (c Config) Provider() vpic.Config {
	return vpic.Config{
		BaseURL:       c.ProviderURL,
		Timeout:       c.RequestTimeout,
		RatePerSecond: c.RateLimit,
		Burst:         c.RateBurst,
		RetryAttempts: c.RetryAttempts,
	}
}
