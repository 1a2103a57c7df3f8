package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name in the working directory.
const FileName = "reconciler.yaml"

// Config represents the top-level reconciler.yaml configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

// DatabaseConfig selects the gorm driver and its DSN.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres or mysql
	DSN    string `yaml:"dsn"`
}

// IngestConfig controls CSV ingestion.
type IngestConfig struct {
	BatchSize int    `yaml:"batch_size"`
	InboxDir  string `yaml:"inbox_dir"`
}

// ReconcileConfig controls scheduled runs and the run log.
type ReconcileConfig struct {
	Schedule string `yaml:"schedule,omitempty"` // cron spec; empty disables
	TimeZone string `yaml:"timezone"`
	RunLog   string `yaml:"run_log,omitempty"` // CSV path; empty disables
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json or logfmt
}

// Load reads a reconciler.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault reads path if it exists and falls back to Default otherwise.
// Environment overrides are applied in both cases.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
	} else if err != nil {
		return nil, err
	}
	if err := LoadEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for local use.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":3000",
			MaxUploadMB: 50,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "reconciler.db",
		},
		Ingest: IngestConfig{
			BatchSize: 1000,
			InboxDir:  "import",
		},
		Reconcile: ReconcileConfig{
			TimeZone: "UTC",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadEnv loads a .env file when present and applies environment overrides.
func LoadEnv(cfg *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("parsing PORT %q: %w", v, err)
		}
		cfg.Server.Addr = ":" + v
	}
	if v, ok := lookup("DATABASE_DRIVER"); ok && v != "" {
		cfg.Database.Driver = v
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		cfg.Database.DSN = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok && v != "" {
		cfg.Log.Format = v
	}
	if v, ok := lookup("RECONCILE_SCHEDULE"); ok {
		cfg.Reconcile.Schedule = v
	}
	return nil
}
