package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Server struct {
		Port string `env:"SERVER_PORT" envDefault:"5250"`

		// Origins allowed by the CORS middleware
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	}

	// Database configuration. Reads and writes use separate pools so map
	// queries are not starved by aggregation batches.
	Database struct {
		// Either "sqlite" or "postgres"
		Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`

		DSN string `env:"DATABASE_DSN" envDefault:"database/mapprice.db"`

		// Defaults to DSN when empty
		ReadDSN string `env:"READ_DATABASE_DSN"`

		MaxOpenConns     int `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"2"`
		ReadMaxOpenConns int `env:"READ_DATABASE_MAX_OPEN_CONNS" envDefault:"8"`
	}

	Aggregation struct {
		// Number of listings loaded and written per transaction
		BatchSize int `env:"AGGREGATION_BATCH_SIZE" envDefault:"500"`

		// Hour of day (local time) of the scheduled run
		RunHour int `env:"AGGREGATION_RUN_HOUR" envDefault:"3"`

		RunOnStartup bool `env:"AGGREGATION_RUN_ON_STARTUP" envDefault:"true"`

		// Pending run requests; 1 collapses repeated triggers into one run
		QueueSize int `env:"AGGREGATION_QUEUE_SIZE" envDefault:"1"`
	}

	Search struct {
		// Name search hits returned per listing type
		ResultLimit int `env:"SEARCH_RESULT_LIMIT" envDefault:"20"`

		// Distance proxy for radius searches, in degrees
		RadiusDegree float64 `env:"SEARCH_RADIUS_DEGREE" envDefault:"0.01"`
	}

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.Database.ReadDSN == "" {
		cfg.Database.ReadDSN = cfg.Database.DSN
	}
	return cfg, nil
}
