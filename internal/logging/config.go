package logging

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config holds logger settings. Only Level and Format are exposed in the
// vectord config file; the rest are fixed by NewDefaultConfig.
type Config struct {
	Level  zapcore.Level
	Format string // "json" or "console"

	// Writer receives encoded entries. Nil means os.Stdout.
	Writer io.Writer

	// OTEL tees entries into the log provider passed to NewLogger.
	OTEL bool

	Sampling  SamplingConfig
	Redaction RedactionConfig

	// Fields are attached to every entry.
	Fields map[string]string
}

// SamplingConfig bounds log volume below Error. Within each Tick the
// first Initial entries with the same message pass, then every
// Thereafter-th.
type SamplingConfig struct {
	Enabled    bool
	Tick       time.Duration
	Initial    int
	Thereafter int
}

// RedactionConfig lists field names (case-insensitive) and value
// patterns that are masked on the stdout core.
type RedactionConfig struct {
	Fields   []string
	Patterns []string
}

// maxPatternLen guards against pathological redaction regexps.
const maxPatternLen = 200

// NewDefaultConfig returns the production logger settings.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		OTEL:   true,
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 10,
		},
		Redaction: RedactionConfig{
			Fields: []string{
				"api_key", "authorization", "password", "secret", "token",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
			},
		},
		Fields: map[string]string{
			"service": "vectord",
		},
	}
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("log format must be json or console, got %q", c.Format)
	}
	if c.Sampling.Enabled {
		if c.Sampling.Tick <= 0 {
			return errors.New("sampling tick must be positive")
		}
		if c.Sampling.Initial < 1 {
			return fmt.Errorf("sampling initial must be at least 1, got %d", c.Sampling.Initial)
		}
	}
	for _, p := range c.Redaction.Patterns {
		if len(p) > maxPatternLen {
			return fmt.Errorf("redaction pattern longer than %d chars: %q", maxPatternLen, p)
		}
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("constant field %q=%q must have a key and a value", k, v)
		}
	}
	return nil
}

// FromSettings returns the default config with level and format taken
// from the vectord config. Empty values keep the defaults. Debug and
// Trace disable sampling.
func FromSettings(level, format string) (*Config, error) {
	cfg := NewDefaultConfig()
	if level != "" {
		lvl, err := LevelFromString(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}
	if format != "" {
		cfg.Format = strings.ToLower(strings.TrimSpace(format))
	}
	if cfg.Level < zapcore.InfoLevel {
		cfg.Sampling.Enabled = false
	}
	return cfg, cfg.Validate()
}
