// Package config loads the command configuration from YAML files
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/geseq/rtkernel"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Kernel KernelConfig `yaml:"kernel"`
	Spawn  SpawnConfig  `yaml:"spawn"`
	Stats  StatsConfig  `yaml:"stats"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `yaml:"level"`
	// Format is console or json
	Format string `yaml:"format"`
	// FilePath enables a rotated log file instead of stdout
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// KernelConfig holds the kernel options
type KernelConfig struct {
	Checks      bool   `yaml:"checks"`
	StackFill   bool   `yaml:"stack_fill"`
	TraceBuffer uint64 `yaml:"trace_buffer"`
}

// SpawnConfig holds the worker spawning configuration
type SpawnConfig struct {
	// Threads is the number of working areas in the threads pool
	Threads int `yaml:"threads"`
	// WorkingArea is the size of each working area in bytes
	WorkingArea int `yaml:"working_area"`
	// Priority of the spawned workers
	Priority int `yaml:"priority"`
	// Work is how long each worker runs
	Work time.Duration `yaml:"work"`
	// Interval between spawns
	Interval time.Duration `yaml:"interval"`
	// Backoff after a spawn failed on an exhausted pool
	Backoff time.Duration `yaml:"backoff"`
	// Jobs stops spawning after that many workers, zero runs until stopped
	Jobs int `yaml:"jobs"`
}

// StatsConfig holds the periodic stats report configuration
type StatsConfig struct {
	// Schedule is a cron spec with seconds, empty disables reports
	Schedule string `yaml:"schedule"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Kernel: KernelConfig{
			Checks:      true,
			TraceBuffer: 128,
		},
		Spawn: SpawnConfig{
			Threads:     8,
			WorkingArea: 1024,
			Priority:    128,
			Work:        50 * time.Millisecond,
			Interval:    5 * time.Millisecond,
			Backoff:     10 * time.Millisecond,
		},
		Stats: StatsConfig{
			Schedule: "*/5 * * * * *",
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

var (
	ErrThreads     = errors.New("spawn.threads must be positive")
	ErrWorkingArea = errors.New("spawn.working_area below the kernel minimum")
	ErrPriority    = errors.New("spawn.priority out of range 1..255")
	ErrFormat      = errors.New("log.format must be console or json")
)

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Spawn.Threads <= 0 {
		return ErrThreads
	}
	if c.Spawn.WorkingArea < rtkernel.MinWorkingAreaSize {
		return ErrWorkingArea
	}
	if c.Spawn.Priority < 1 || c.Spawn.Priority > 255 {
		return ErrPriority
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return ErrFormat
	}

	if c.Stats.Schedule != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Stats.Schedule); err != nil {
			return fmt.Errorf("stats.schedule: %w", err)
		}
	}

	return nil
}
