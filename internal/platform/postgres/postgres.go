// Package postgres opens the sqlx pool on the pgx driver.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"

	"sharereg/internal/platform/config"
)

const retryDelay = time.Second

// Connect opens the pool, retrying while the database comes up.
func Connect(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) (*sqlx.DB, error) {
	attempts := max(cfg.ConnAttempts, 1)
	var (
		db  *sqlx.DB
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err = sqlx.ConnectContext(ctx, "pgx", cfg.URL)
		if err == nil {
			break
		}
		logger.InfoContext(ctx, "postgres is not ready", "attempts_left", attempts-attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	logger.InfoContext(ctx, "postgres connected")
	return db, nil
}
