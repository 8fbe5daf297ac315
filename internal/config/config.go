package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Env         string `env:"ENV" envDefault:"development"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecret       string        `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer       string        `env:"JWT_ISSUER"`
	// JWTAccessExpiry only matters for tokens minted by this process; the
	// session layer issues the tokens clients normally present.
	JWTAccessExpiry time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"15m"`

	// Timezone is where naive start times submitted by clients are read.
	Timezone string `env:"TIMEZONE" envDefault:"Local"`

	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Poll     PollConfig
	Worker   WorkerConfig
}

// RedisConfig backs both the snapshot cache and the task queue. An empty
// address disables both.
type RedisConfig struct {
	Addr             string        `env:"REDIS_ADDR"`
	Password         string        `env:"REDIS_PASSWORD"`
	DB               int           `env:"REDIS_DB" envDefault:"0"`
	SnapshotCacheTTL time.Duration `env:"SNAPSHOT_CACHE_TTL" envDefault:"2s"`
}

type RabbitMQConfig struct {
	URL      string `env:"RABBITMQ_URL"`
	Exchange string `env:"EVENTS_EXCHANGE" envDefault:"raidroom.events"`
}

// PollConfig limits requests per authenticated caller.
type PollConfig struct {
	Rate  float64 `env:"POLL_RATE" envDefault:"2"`
	Burst int     `env:"POLL_BURST" envDefault:"10"`
}

type WorkerConfig struct {
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	Concurrency   int           `env:"WORKER_CONCURRENCY" envDefault:"4"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	if cfg.Poll.Rate <= 0 || cfg.Poll.Burst <= 0 {
		return nil, fmt.Errorf("POLL_RATE and POLL_BURST must be positive")
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
