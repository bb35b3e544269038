package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `env:"APP_ENV" env-default:"production"`

	DBDriver    string `env:"DB_DRIVER" env-default:"sqlite"`
	SqliteDB    string `env:"SQLITE_DB" env-default:"blog.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	Port          string `env:"PORT" env-default:"8080"`
	SessionSecret string `env:"SESSION_SECRET"`

	CacheDir    string        `env:"CACHE_DIR" env-default:"cache"`
	CacheMaxAge time.Duration `env:"CACHE_MAX_AGE" env-default:"0s"`

	PasswordHash   string   `env:"PASSWORD_HASH" env-default:"sha256"`
	SeedCategories []string `env:"SEED_CATEGORIES" env-separator:"," env-default:"General,Technology,Travel,Food,Lifestyle"`

	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// a missing .env is fine, the environment alone is enough
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.SqliteDB == "" {
			return errors.New("SQLITE_DB is required when DB_DRIVER=sqlite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be 'sqlite' or 'postgres', got %q", c.DBDriver)
	}

	if c.PasswordHash != "sha256" && c.PasswordHash != "bcrypt" {
		return fmt.Errorf("PASSWORD_HASH must be 'sha256' or 'bcrypt', got %q", c.PasswordHash)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'text' or 'json', got %q", c.LogFormat)
	}

	if c.CacheMaxAge < 0 {
		return errors.New("CACHE_MAX_AGE must not be negative")
	}
	return nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (c *Config) ValidateServe() error {
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET environment variable not set")
	}
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Categories returns the seed list with blanks and surrounding spaces removed.
func (c *Config) Categories() []string {
	var names []string
	for _, name := range c.SeedCategories {
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
