// Package config reads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the server configuration.
type Config struct {
	DBPath          string        `env:"ROSTER_DB_PATH" envDefault:"roster.db"`
	Port            string        `env:"PORT" envDefault:"8080"`
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"roster-dev-secret-change-in-production"`
	TokenTTL        time.Duration `env:"ROSTER_TOKEN_TTL" envDefault:"24h"`
	Debug           bool          `env:"ROSTER_DEBUG" envDefault:"false"`
	ShutdownTimeout time.Duration `env:"ROSTER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the configuration. Values from dotenv files fill in
// variables that are not already set; a missing file is not an error.
func Load(dotenv ...string) (Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("ROSTER_TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}
