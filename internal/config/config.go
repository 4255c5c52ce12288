// Package config loads environment-driven configuration for stint.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds environment-driven configuration.
type Config struct {
	// DataDir is where the database and snapshot mirrors live.
	// Default: ~/.stint
	DataDir string
	// MirrorDir is where document snapshot files are written.
	// Default: <DataDir>/mirror
	MirrorDir string
	// IntervalMinutes is the default work-interval length for new timers.
	// Default: 25
	IntervalMinutes int64
}

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	var cfg Config

	cfg.DataDir = os.Getenv("STINT_DATA_DIR")
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, errors.New("STINT_DATA_DIR is not set and the home directory is unknown")
		}
		cfg.DataDir = filepath.Join(home, ".stint")
	}

	cfg.MirrorDir = os.Getenv("STINT_MIRROR_DIR")
	if cfg.MirrorDir == "" {
		cfg.MirrorDir = filepath.Join(cfg.DataDir, "mirror")
	}

	cfg.IntervalMinutes = 25
	if v := os.Getenv("STINT_INTERVAL_MINUTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return cfg, errors.New("STINT_INTERVAL_MINUTES must be a positive integer")
		}
		cfg.IntervalMinutes = n
	}

	return cfg, nil
}

// DBPath returns the SQLite database location.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "stint.db")
}
