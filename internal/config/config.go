package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config keeps runtime settings for the server and the CLI.
type Config struct {
	Addr      string `yaml:"addr"`
	DBPath    string `yaml:"db_path"`
	StaticDir string `yaml:"static_dir"`
	// MaterializeEvery is how often recurring tasks are caught up; 0 disables
	// the background job.
	MaterializeEvery time.Duration `yaml:"materialize_every"`
	LogLevel         string        `yaml:"log_level"`
	// DoneColumn is where completed tasks are moved.
	DoneColumn string `yaml:"done_column"`
}

// Environment variables read by Load.
const (
	EnvConfig           = "TASKBOARD_CONFIG"
	EnvAddr             = "TASKBOARD_ADDR"
	EnvDBPath           = "TASKBOARD_DB_PATH"
	EnvStaticDir        = "TASKBOARD_STATIC_DIR"
	EnvMaterializeEvery = "TASKBOARD_MATERIALIZE_EVERY"
	EnvLogLevel         = "TASKBOARD_LOG_LEVEL"
	EnvDoneColumn       = "TASKBOARD_DONE_COLUMN"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:             ":3001",
		DBPath:           "data/tasks.db",
		StaticDir:        "web/dist",
		MaterializeEvery: time.Hour,
		LogLevel:         "info",
		DoneColumn:       "done",
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or $TASKBOARD_CONFIG when path is empty), then environment variables.
// A missing file is only an error when a path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		}
	}

	cfg.Addr = envOrDefault(EnvAddr, cfg.Addr)
	cfg.DBPath = envOrDefault(EnvDBPath, cfg.DBPath)
	cfg.StaticDir = envOrDefault(EnvStaticDir, cfg.StaticDir)
	cfg.LogLevel = envOrDefault(EnvLogLevel, cfg.LogLevel)
	cfg.DoneColumn = envOrDefault(EnvDoneColumn, cfg.DoneColumn)
	if raw := strings.TrimSpace(os.Getenv(EnvMaterializeEvery)); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvMaterializeEvery, err)
		}
		cfg.MaterializeEvery = d
	}

	return cfg, cfg.Validate()
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.MaterializeEvery < 0 {
		return fmt.Errorf("materialize_every must not be negative")
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// envOrDefault returns the environment variable value or fallback when it is empty.
func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
