package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration, parsed from environment variables.
type Config struct {
	BotToken     string `env:"BOT_TOKEN"`
	Port         string `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/points.db"`

	// WelcomeGrant is the number of points granted to a new user on /start.
	WelcomeGrant int64 `env:"WELCOME_GRANT" envDefault:"500"`

	// HeistOpenFor and RaffleOpenFor control how long each event kind
	// accepts participants before the worker requests resolution.
	HeistOpenFor  time.Duration `env:"HEIST_OPEN_FOR" envDefault:"2m"`
	RaffleOpenFor time.Duration `env:"RAFFLE_OPEN_FOR" envDefault:"5m"`

	// WorkerInterval is how often the resolution worker scans live events.
	WorkerInterval time.Duration `env:"WORKER_INTERVAL" envDefault:"5s"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
