// Package config assembles run settings from defaults, ADSCROLL_* environment
// variables and an optional json5 file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"adscroll/internal/catalog"
	"adscroll/internal/harvest"
	"adscroll/internal/listing"
	"adscroll/internal/storage"
)

// DefaultFile is read when no --config is given. A missing file is not an error.
const DefaultFile = "adscroll.json5"

// Config holds everything a run needs. Durations are Go duration strings
// ("2.5s") so they read naturally in the config file.
type Config struct {
	City     string `json:"city"`
	Category string `json:"category"`

	Output      string `json:"output"`
	Format      string `json:"format"`
	SQLite      string `json:"sqlite"`
	Postgres    string `json:"postgres"`
	SnapshotDir string `json:"snapshot_dir"`
	FromFile    string `json:"from_file"`

	// Loop tuning
	ScrollPause string `json:"scroll_pause"`
	ScrollStep  int    `json:"scroll_step"`
	MaxScrolls  int    `json:"max_scrolls"`
	MaxStall    int    `json:"max_stall"`
	WaitTimeout string `json:"wait_timeout"`

	// Browser
	ShowUI    bool   `json:"showui"`
	Proxy     string `json:"proxy"`
	ChromeBin string `json:"chrome_bin"`
	UserAgent string `json:"user_agent"`

	Selectors listing.Selectors `json:"selectors"`
}

// Default returns the built-in settings with environment overrides applied.
func Default() Config {
	opts := harvest.DefaultOptions()
	return Config{
		City:        getEnv("ADSCROLL_CITY", catalog.DefaultCity),
		Output:      getEnv("ADSCROLL_OUTPUT", storage.DefaultPath),
		SQLite:      getEnv("ADSCROLL_SQLITE", ""),
		Postgres:    getEnv("ADSCROLL_POSTGRES", ""),
		SnapshotDir: getEnv("ADSCROLL_SNAPSHOT_DIR", ""),

		ScrollPause: getEnv("ADSCROLL_SCROLL_PAUSE", opts.ScrollPause.String()),
		ScrollStep:  getEnvInt("ADSCROLL_SCROLL_STEP", opts.ScrollStep),
		MaxScrolls:  getEnvInt("ADSCROLL_MAX_SCROLLS", opts.MaxScrolls),
		MaxStall:    getEnvInt("ADSCROLL_MAX_STALL", opts.MaxStallRounds),
		WaitTimeout: getEnv("ADSCROLL_WAIT_TIMEOUT", opts.WaitTimeout.String()),

		Proxy:     getEnv("ADSCROLL_PROXY", ""),
		ChromeBin: getEnv("ADSCROLL_CHROME_BIN", ""),
		UserAgent: getEnv("ADSCROLL_USER_AGENT", ""),

		Selectors: opts.Selectors,
	}
}

// HarvestOptions converts the loop settings, validating them on the way.
func (c Config) HarvestOptions() (harvest.Options, error) {
	opts := harvest.DefaultOptions()

	pause, err := time.ParseDuration(c.ScrollPause)
	if err != nil {
		return opts, fmt.Errorf("invalid scroll pause %q: %w", c.ScrollPause, err)
	}
	wait, err := time.ParseDuration(c.WaitTimeout)
	if err != nil {
		return opts, fmt.Errorf("invalid wait timeout %q: %w", c.WaitTimeout, err)
	}
	switch {
	case pause < 0:
		return opts, fmt.Errorf("scroll pause must not be negative: %s", pause)
	case wait <= 0:
		return opts, fmt.Errorf("wait timeout must be positive: %s", wait)
	case c.ScrollStep < 1:
		return opts, fmt.Errorf("scroll step must be positive: %d", c.ScrollStep)
	case c.MaxScrolls < 1:
		return opts, fmt.Errorf("max scrolls must be at least 1: %d", c.MaxScrolls)
	case c.MaxStall < 1:
		return opts, fmt.Errorf("max stall rounds must be at least 1: %d", c.MaxStall)
	}

	opts.ScrollPause = pause
	opts.ScrollStep = c.ScrollStep
	opts.MaxScrolls = c.MaxScrolls
	opts.MaxStallRounds = c.MaxStall
	opts.WaitTimeout = wait
	opts.Selectors = c.Selectors
	return opts, nil
}

// OutputFormat returns the explicit format or the one implied by Output.
func (c Config) OutputFormat() (storage.Format, error) {
	if c.Format != "" {
		return storage.ParseFormat(c.Format)
	}
	if f := storage.FormatFromPath(c.Output); f != "" {
		return f, nil
	}
	return storage.FormatJSON, nil
}

func getEnv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}
