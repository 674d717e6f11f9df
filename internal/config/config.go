// Package config loads the block-replay YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names a config file used when no path is given explicitly.
const EnvVar = "BLOCK_REPLAY_CONFIG"

// Store kinds.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config is the root configuration document.
type Config struct {
	Replay      Replay      `yaml:"replay"`
	Store       Store       `yaml:"store"`
	Diagnostics Diagnostics `yaml:"diagnostics"`
	LogLevel    string      `yaml:"log_level"`
}

// Replay holds replay driver timings.
type Replay struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	StepTimeout  time.Duration `yaml:"step_timeout"`
	Tick         time.Duration `yaml:"tick"`
	Speed        float64       `yaml:"speed"`
	Fast         bool          `yaml:"fast"`
}

// Store selects where sessions are kept.
type Store struct {
	Kind string `yaml:"kind"`
	// Path is a directory for the file store and a database file for sqlite.
	Path string `yaml:"path"`
}

// Diagnostics configures the remote log sink. An empty endpoint disables it.
type Diagnostics struct {
	Endpoint       string        `yaml:"endpoint"`
	InstallationID string        `yaml:"installation_id"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Replay: Replay{
			PollInterval: time.Millisecond,
			StepTimeout:  300 * time.Millisecond,
			Tick:         time.Millisecond,
			Speed:        1,
		},
		Store: Store{Kind: StoreFile, Path: "."},
		Diagnostics: Diagnostics{
			FlushInterval: 5 * time.Second,
			MaxAttempts:   3,
			RetryDelay:    time.Second,
		},
		LogLevel: "info",
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Replay.PollInterval <= 0 {
		errs = append(errs, errors.New("replay.poll_interval must be > 0"))
	}
	if c.Replay.StepTimeout < c.Replay.PollInterval {
		errs = append(errs, fmt.Errorf("replay.step_timeout must be >= poll_interval, got %s", c.Replay.StepTimeout))
	}
	if c.Replay.Tick < 0 {
		errs = append(errs, errors.New("replay.tick must be >= 0"))
	}
	if c.Replay.Speed <= 0 {
		errs = append(errs, fmt.Errorf("replay.speed must be > 0, got %g", c.Replay.Speed))
	}
	switch c.Store.Kind {
	case StoreFile, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.kind must be %q or %q, got %q", StoreFile, StoreSQLite, c.Store.Kind))
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("store.path must be non-empty"))
	}
	if c.Diagnostics.MaxAttempts < 1 {
		errs = append(errs, errors.New("diagnostics.max_attempts must be >= 1"))
	}
	if c.Diagnostics.FlushInterval <= 0 || c.Diagnostics.RetryDelay < 0 {
		errs = append(errs, errors.New("diagnostics.flush_interval must be > 0 and retry_delay >= 0"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", s, err)
	}
	return level, nil
}

// Load parses a config document over Defaults with strict field checking.
// An empty document yields the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := Defaults()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile loads the config at path.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path) //nolint:gosec // config path comes from the user
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Resolve loads path, or the file named by EnvVar when path is empty, or
// returns the defaults when neither is set.
func Resolve(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Defaults(), nil
	}
	return LoadFile(path)
}
