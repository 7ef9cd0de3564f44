/*
Package config loads runtime configuration.

SOURCES (later wins):
  1. Defaults below
  2. rentledger.yml in the working directory or /etc/rentledger (optional)
  3. .env file loaded into the environment (optional)
  4. RENTLEDGER_* environment variables, "." replaced by "_"
     e.g. RENTLEDGER_SERVER_PORT=9090, RENTLEDGER_DATABASE_PATH=/data/ledger.db
  5. Command-line flags bound by cmd/server

EXAMPLE rentledger.yml:
  server:
    port: 8080
    metrics: true
  database:
    path: rentledger.db
  log:
    level: info
  scheduler:
    enabled: true
    interval: 1h
  arrears:
    aging_buckets:
      - {label: "0-30", min_days: 0, max_days: 30}
      - {label: "31-60", min_days: 31, max_days: 60}
      - {label: "61+", min_days: 61}
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "RENTLEDGER"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Arrears   ArrearsConfig   `mapstructure:"arrears"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// Metrics serves Prometheus metrics on /metrics.
	Metrics bool `mapstructure:"metrics"`
}

type DatabaseConfig struct {
	// Path is a SQLite file, or ":memory:" for a throwaway database.
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SchedulerConfig controls the periodic occupancy sweep.
type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type ArrearsConfig struct {
	AgingBuckets []AgingBucket `mapstructure:"aging_buckets"`
}

// AgingBucket is an inclusive day range. A nil MaxDays is open-ended.
type AgingBucket struct {
	Label   string `mapstructure:"label"`
	MinDays int    `mapstructure:"min_days"`
	MaxDays *int   `mapstructure:"max_days"`
}

func intPtr(v int) *int { return &v }

func DefaultAgingBuckets() []AgingBucket {
	return []AgingBucket{
		{Label: "0-30", MinDays: 0, MaxDays: intPtr(30)},
		{Label: "31-60", MinDays: 31, MaxDays: intPtr(60)},
		{Label: "61+", MinDays: 61},
	}
}

// New returns a viper instance with defaults and environment binding set.
// Callers may bind flags onto it before calling Load.
func New() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("rentledger")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/rentledger")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("server.metrics", true)
	v.SetDefault("database.path", "rentledger.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", time.Hour)
	return v
}

// Load reads the optional config file and decodes the result. file, when
// set, must exist.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if len(cfg.Arrears.AgingBuckets) == 0 {
		cfg.Arrears.AgingBuckets = DefaultAgingBuckets()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is required")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval %s must be positive", c.Scheduler.Interval)
	}
	return validateBuckets(c.Arrears.AgingBuckets)
}

// validateBuckets requires contiguous ranges starting at day 0 with only the
// last one open-ended, so every age lands in exactly one bucket.
func validateBuckets(buckets []AgingBucket) error {
	if len(buckets) == 0 {
		return errors.New("arrears.aging_buckets cannot be empty")
	}
	next := 0
	for i, b := range buckets {
		if b.Label == "" {
			return fmt.Errorf("arrears.aging_buckets[%d]: label is required", i)
		}
		if b.MinDays != next {
			return fmt.Errorf("arrears.aging_buckets[%d]: min_days %d, expected %d", i, b.MinDays, next)
		}
		last := i == len(buckets)-1
		switch {
		case b.MaxDays == nil && !last:
			return fmt.Errorf("arrears.aging_buckets[%d]: only the last bucket may be open-ended", i)
		case b.MaxDays != nil && last:
			return fmt.Errorf("arrears.aging_buckets[%d]: last bucket must be open-ended", i)
		case b.MaxDays != nil && *b.MaxDays < b.MinDays:
			return fmt.Errorf("arrears.aging_buckets[%d]: max_days before min_days", i)
		}
		if b.MaxDays != nil {
			next = *b.MaxDays + 1
		}
	}
	return nil
}
