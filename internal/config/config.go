package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string        `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL string        `env:"DATABASE_URL,required"`
	RedisURL    string        `env:"REDIS_URL"` // empty keeps combat sessions in process memory
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	AutoMigrate bool          `env:"AUTO_MIGRATE" envDefault:"false"`
}

// Load reads .env files when present, then the environment. Variables already
// set in the environment win over the files.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("parse env: SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	return &cfg, nil
}
