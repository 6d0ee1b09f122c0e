// Package config loads service settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skufu/GlucoRisk/internal/model"
)

type Config struct {
	Port          string
	GinMode       string
	DatabaseURL   string
	EnableDB      bool
	RunMigrations bool
	ModelDir      string
	QuickModel    string
	FullModel     string
	QuickModelURL string
	FullModelURL  string
	ModelTimeout  time.Duration
	LogLevel      string
	LogFormat     string
	StaticDir     string
}

// Load reads configuration. Missing .env files are ignored.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		GinMode:       getEnv("GIN_MODE", "release"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		EnableDB:      strings.EqualFold(getEnv("ENABLE_DB", "false"), "true"),
		RunMigrations: strings.EqualFold(getEnv("RUN_MIGRATIONS", "true"), "true"),
		ModelDir:      getEnv("MODEL_DIR", "models"),
		QuickModel:    getEnv("QUICK_MODEL_FILE", "diabetes_quick_model.json"),
		FullModel:     getEnv("FULL_MODEL_FILE", "diabetes_full_model.json"),
		QuickModelURL: os.Getenv("QUICK_MODEL_URL"),
		FullModelURL:  os.Getenv("FULL_MODEL_URL"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		StaticDir:     os.Getenv("STATIC_DIR"),
	}

	if cfg.EnableDB && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}

	timeout, err := time.ParseDuration(getEnv("MODEL_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid MODEL_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("MODEL_TIMEOUT must be positive, got %s", timeout)
	}
	cfg.ModelTimeout = timeout

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// ModelStore returns where each mode's model is loaded from. Relative file
// names are resolved against ModelDir.
func (c *Config) ModelStore() model.StoreConfig {
	return model.StoreConfig{
		Quick:   model.Source{Path: c.modelPath(c.QuickModel), URL: c.QuickModelURL},
		Full:    model.Source{Path: c.modelPath(c.FullModel), URL: c.FullModelURL},
		Timeout: c.ModelTimeout,
	}
}

func (c *Config) modelPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.ModelDir, name)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
