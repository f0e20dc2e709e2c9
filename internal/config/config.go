// Package config loads the yard service configuration: storage, HTTP, the claim
// monitor and the yards, spots and workers provisioned at startup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
	"yard-pick/internal/models"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig selects the authoritative store
type DatabaseConfig struct {
	// Driver is "sqlite3" or "mysql".
	Driver string `yaml:"driver"`
	// DSN is a file path for sqlite3 or a go-sql-driver DSN for mysql.
	DSN string `yaml:"dsn"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Port string `yaml:"port"`
	// RequestsPerMinute caps mutating requests per worker. Zero disables the limit.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// MonitorConfig controls the stale claim report
type MonitorConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// SpotConfig is one staging spot
type SpotConfig struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label,omitempty"`
}

// YardConfig lists the spots of one yard
type YardConfig struct {
	ID    string       `yaml:"id"`
	Name  string       `yaml:"name,omitempty"`
	Spots []SpotConfig `yaml:"spots"`
}

// WorkerConfig is one worker allowed to claim jobs
type WorkerConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Config models the service's YAML file
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Yards    []YardConfig   `yaml:"yards"`
	Workers  []WorkerConfig `yaml:"workers"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "sqlite3", DSN: "yard.db"},
		Server:   ServerConfig{Port: "8080", RequestsPerMinute: 120},
		Monitor:  MonitorConfig{Interval: 30 * time.Second, StaleAfter: 4 * time.Hour},
	}
}

// Load reads a YAML config file over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks that all config values are valid.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite3", "mysql":
	default:
		return fmt.Errorf("invalid database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn cannot be empty")
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive")
	}
	if c.Monitor.StaleAfter <= 0 {
		return fmt.Errorf("monitor stale_after must be positive")
	}

	yards := make(map[string]bool)
	for _, yard := range c.Yards {
		if yard.ID == "" {
			return fmt.Errorf("yard id cannot be empty")
		}
		if yards[yard.ID] {
			return fmt.Errorf("duplicate yard %q", yard.ID)
		}
		yards[yard.ID] = true

		spots := make(map[string]bool)
		for _, spot := range yard.Spots {
			if spot.ID == "" {
				return fmt.Errorf("yard %q: spot id cannot be empty", yard.ID)
			}
			if spots[spot.ID] {
				return fmt.Errorf("yard %q: duplicate spot %q", yard.ID, spot.ID)
			}
			spots[spot.ID] = true
		}
	}

	workers := make(map[string]bool)
	for _, w := range c.Workers {
		if w.ID == "" || w.Name == "" {
			return fmt.Errorf("worker entries need both id and name")
		}
		if workers[w.ID] {
			return fmt.Errorf("duplicate worker %q", w.ID)
		}
		workers[w.ID] = true
	}
	return nil
}

// Spots flattens the yard list into registry entries
func (c *Config) Spots() []models.YardSpot {
	var spots []models.YardSpot
	for _, yard := range c.Yards {
		for _, spot := range yard.Spots {
			spots = append(spots, models.YardSpot{YardID: yard.ID, ID: spot.ID, Label: spot.Label})
		}
	}
	return spots
}

// WorkerList converts the configured workers into models
func (c *Config) WorkerList() []models.Worker {
	workers := make([]models.Worker, 0, len(c.Workers))
	for _, w := range c.Workers {
		workers = append(workers, models.Worker{ID: w.ID, DisplayName: w.Name})
	}
	return workers
}
