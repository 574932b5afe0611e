// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"` // bearer key for mutating routes
	// SessionSecret signs short-lived dashboard session tokens accepted on
	// the stream endpoint (EventSource cannot set Authorization headers).
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Submission rate limit per org within the window.
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

// RunnerConfig bounds the external-tool worker pool.
type RunnerConfig struct {
	Tool           string        `yaml:"tool"`            // research tool executable
	WorkDir        string        `yaml:"work_dir"`        // working directory for spawned tools
	PoolSize       int           `yaml:"pool_size"`       // max concurrent subprocesses
	QueueWait      time.Duration `yaml:"queue_wait"`      // how long a submission waits for a slot
	DefaultTimeout time.Duration `yaml:"default_timeout"` // per-job wall clock budget
}

// StreamConfig tunes the log stream's adaptive polling. The defaults match
// the dashboard's expectations; they are configurable per deployment.
type StreamConfig struct {
	ActiveInterval time.Duration `yaml:"active_interval"` // poll interval while entries flow
	IdleInterval   time.Duration `yaml:"idle_interval"`   // poll interval after IdleThreshold empty ticks
	IdleThreshold  int           `yaml:"idle_threshold"`  // consecutive empty ticks before going idle
	EvictionGrace  time.Duration `yaml:"eviction_grace"`  // registry retention after the terminal event
}

type ScoringConfig struct {
	RubricPath string `yaml:"rubric_path"` // JSON rubric file; empty uses the built-in default
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Runner   RunnerConfig   `yaml:"runner"`
	Stream   StreamConfig   `yaml:"stream"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()

	// Minimal validation
	if cfg.Runner.Tool == "" {
		return nil, errors.New("runner.tool is required")
	}
	if cfg.Database.URL == "" && !dev {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.Enabled && cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required when redis.enabled")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// ApplyDefaults fills zero values with the documented defaults. Exported so
// tests can build configs without a yaml file.
func (cfg *Config) ApplyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SessionTTL <= 0 {
		cfg.Server.SessionTTL = 30 * time.Minute
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Redis.RateLimit <= 0 {
		cfg.Redis.RateLimit = 30
	}
	if cfg.Redis.RateWindow <= 0 {
		cfg.Redis.RateWindow = time.Minute
	}
	if cfg.Runner.PoolSize <= 0 {
		cfg.Runner.PoolSize = 4
	}
	if cfg.Runner.QueueWait <= 0 {
		cfg.Runner.QueueWait = 30 * time.Second
	}
	if cfg.Runner.DefaultTimeout <= 0 {
		cfg.Runner.DefaultTimeout = 10 * time.Minute
	}
	if cfg.Stream.ActiveInterval <= 0 {
		cfg.Stream.ActiveInterval = 100 * time.Millisecond
	}
	if cfg.Stream.IdleInterval <= 0 {
		cfg.Stream.IdleInterval = 250 * time.Millisecond
	}
	if cfg.Stream.IdleThreshold <= 0 {
		cfg.Stream.IdleThreshold = 10
	}
	if cfg.Stream.EvictionGrace <= 0 {
		cfg.Stream.EvictionGrace = 30 * time.Second
	}
}
