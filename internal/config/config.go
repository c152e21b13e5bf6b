// Package config holds dockyard's startup configuration.
//
// Values come from built-in defaults, then an optional YAML file at
// $XDG_CONFIG_HOME/dockyard/config.yaml (or the --config path), then flags.
// The file is only ever read.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixed cadences and limits. These are not configurable.
const (
	ContainerRefreshInterval = 10 * time.Second
	ImageRefreshInterval     = 30 * time.Second
	MaxInFlight              = 5

	MinStatsInterval = 1
	MaxStatsInterval = 10
)

// Config is the resolved startup configuration.
type Config struct {
	StatsInterval   int    `yaml:"stats_interval"`   // seconds, [1,10]
	ViewportMargin  int    `yaml:"viewport_margin"`  // rows fetched above and below the visible window
	LogTail         int    `yaml:"log_tail"`         // lines requested when a log stream opens
	LogCapacity     int    `yaml:"log_capacity"`     // log ring size
	HistoryCapacity int    `yaml:"history_capacity"` // stats points kept per container
	ShowAll         bool   `yaml:"show_all"`         // include stopped containers
	LogFile         string `yaml:"log_file"`
	LogLevel        string `yaml:"log_level"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		StatsInterval:   3,
		ViewportMargin:  5,
		LogTail:         100,
		LogCapacity:     1000,
		HistoryCapacity: 100,
		ShowAll:         true,
		LogLevel:        "info",
	}
}

// Path returns the default config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/dockyard/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "dockyard", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "dockyard", "config.yaml")
}

// Load layers the YAML file at path over the defaults. An empty path means
// the default location, which may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = Path()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	// Keys missing from the file keep their default values.
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the scheduler cannot run with. Out-of-range values
// are errors, never clamped.
func (c Config) Validate() error {
	if c.StatsInterval < MinStatsInterval || c.StatsInterval > MaxStatsInterval {
		return fmt.Errorf("stats interval must be between %d and %d seconds, got %d",
			MinStatsInterval, MaxStatsInterval, c.StatsInterval)
	}
	if c.ViewportMargin < 0 {
		return fmt.Errorf("viewport margin must not be negative, got %d", c.ViewportMargin)
	}
	if c.LogTail < 0 {
		return fmt.Errorf("log tail must not be negative, got %d", c.LogTail)
	}
	if c.LogCapacity < 1 {
		return fmt.Errorf("log capacity must be at least 1, got %d", c.LogCapacity)
	}
	if c.HistoryCapacity < 1 {
		return fmt.Errorf("history capacity must be at least 1, got %d", c.HistoryCapacity)
	}
	return nil
}

// StatsPeriod is the stats refresh interval as a duration.
func (c Config) StatsPeriod() time.Duration {
	return time.Duration(c.StatsInterval) * time.Second
}
