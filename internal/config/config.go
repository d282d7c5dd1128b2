// Package config loads server configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML config file,
// a .env file in the working directory, and LODESTAR_* environment
// variables. A .env file never overrides variables already set in the
// real environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/HendryAvila/lodestar/internal/logging"
	"github.com/HendryAvila/lodestar/internal/timeutil"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvConfigFile      = "LODESTAR_CONFIG"
	EnvDataDir         = "LODESTAR_DATA_DIR"
	EnvDatabaseFile    = "LODESTAR_DATABASE_FILE"
	EnvLogMode         = "LODESTAR_LOG_MODE"
	EnvDefaultTimezone = "LODESTAR_DEFAULT_TIMEZONE"
	EnvLiveDocumentKey = "LODESTAR_LIVE_DOCUMENT_KEY"
	EnvRawTailSize     = "LODESTAR_RAW_TAIL_SIZE"
	EnvWeekStart       = "LODESTAR_WEEK_START"
)

// DefaultLiveDocumentKey identifies the single mutable graph document.
const DefaultLiveDocumentKey = "main"

// SummaryConfig tunes the summarization pipeline.
type SummaryConfig struct {
	// RawTailSize bounds the raw messages from before today that are
	// appended after the summaries.
	RawTailSize int `yaml:"raw_tail_size"`
	// BulletMaxChars truncates message content in DAY summary bullets.
	BulletMaxChars int `yaml:"bullet_max_chars"`
	// WeekStart is the weekday weeks begin on ("sunday", "monday", ...).
	WeekStart string `yaml:"week_start"`
	// EmptyDayPlaceholder is written for required days without messages.
	EmptyDayPlaceholder string `yaml:"empty_day_placeholder"`
}

// Config holds the full server configuration.
type Config struct {
	DataDir         string        `yaml:"data_dir"`
	DatabaseFile    string        `yaml:"database_file"`
	LogMode         string        `yaml:"log_mode"`
	DefaultTimezone string        `yaml:"default_timezone"`
	LiveDocumentKey string        `yaml:"live_document_key"`
	Summary         SummaryConfig `yaml:"summary"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:         filepath.Join(home, ".lodestar"),
		DatabaseFile:    "lodestar.db",
		LogMode:         logging.ModeProduction,
		DefaultTimezone: "UTC",
		LiveDocumentKey: DefaultLiveDocumentKey,
		Summary: SummaryConfig{
			RawTailSize:         6,
			BulletMaxChars:      160,
			WeekStart:           "sunday",
			EmptyDayPlaceholder: "No messages were exchanged on this day.",
		},
	}
}

// DatabasePath returns the absolute SQLite file path.
func (c Config) DatabasePath() string {
	if filepath.IsAbs(c.DatabaseFile) {
		return c.DatabaseFile
	}
	return filepath.Join(c.DataDir, c.DatabaseFile)
}

// Load builds a Config from path (if non-empty), .env and the environment.
// A missing config file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	// .env only fills variables the environment does not already define.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setString(EnvDataDir, &c.DataDir)
	setString(EnvDatabaseFile, &c.DatabaseFile)
	setString(EnvLogMode, &c.LogMode)
	setString(EnvDefaultTimezone, &c.DefaultTimezone)
	setString(EnvLiveDocumentKey, &c.LiveDocumentKey)
	setString(EnvWeekStart, &c.Summary.WeekStart)

	if v, ok := os.LookupEnv(EnvRawTailSize); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRawTailSize, err)
		}
		c.Summary.RawTailSize = n
	}
	return nil
}

// Validate checks values that would otherwise fail deep inside a request.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir is empty"))
	}
	if strings.TrimSpace(c.LiveDocumentKey) == "" {
		errs = append(errs, errors.New("live_document_key is empty"))
	}
	if c.Summary.RawTailSize <= 0 {
		errs = append(errs, fmt.Errorf("summary.raw_tail_size must be > 0, got %d", c.Summary.RawTailSize))
	}
	if c.Summary.BulletMaxChars <= 0 {
		errs = append(errs, fmt.Errorf("summary.bullet_max_chars must be > 0, got %d", c.Summary.BulletMaxChars))
	}
	if _, err := timeutil.ParseWeekday(c.Summary.WeekStart); err != nil {
		errs = append(errs, fmt.Errorf("summary.week_start: %w", err))
	}
	if _, err := timeutil.ResolveLocation(c.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Errorf("default_timezone: %w", err))
	}
	switch strings.ToLower(c.LogMode) {
	case "", "dev", "prod", logging.ModeDevelopment, logging.ModeProduction:
	default:
		errs = append(errs, fmt.Errorf("log_mode %q must be development or production", c.LogMode))
	}
	return errors.Join(errs...)
}
