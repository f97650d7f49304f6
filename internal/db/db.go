package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/orgball2608/media-extractor-bot/internal/migrations"
	"github.com/orgball2608/media-extractor-bot/pkg/config"
	"github.com/pressly/goose/v3"
)

// Open connects to Postgres through database/sql, which goose requires.
func Open(cfg *config.Config) (*sql.DB, error) {
	conn, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, err
	}

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return conn, nil
}

// Migrate applies every registered migration that has not run yet.
func Migrate(ctx context.Context, cfg *config.Config) error {
	conn, err := Open(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	// Migrations are compiled in, so the directory is only used for bookkeeping.
	return goose.UpContext(ctx, conn, ".")
}
