package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/chatvault/chatvault/internal/config"
	"github.com/chatvault/chatvault/internal/db"
	"github.com/chatvault/chatvault/internal/db/migrations"
	"github.com/chatvault/chatvault/internal/dbpool"
)

// app bundles the shared dependencies of every database-backed subcommand.
type app struct {
	cfg  *config.Config
	log  *logrus.Logger
	pool *dbpool.Pool
}

// newApp loads configuration, connects to the database with retries, and
// applies pending migrations.
func newApp(ctx context.Context) (*app, error) {
	// A local .env is a convenience for development; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg.LogLevel)

	pool, err := connectPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		pool.Close()

		return nil, err
	}

	return &app{cfg: cfg, log: log, pool: pool}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	a.pool.Close()
}

// connectPool dials the database with exponential backoff, so a cold start
// racing the database container comes up cleanly.
func connectPool(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*dbpool.Pool, error) {
	var pool *dbpool.Pool

	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error

		pool, err = dbpool.NewPool(ctx, cfg.DatabaseURL.Value())
		if err != nil {
			log.WithError(err).Warn("database not ready, retrying")

			return retry.RetryableError(err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return pool, nil
}

// newLogger builds the process logger. An unknown level falls back to info.
func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	log.SetLevel(lvl)

	return log
}
