package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/quantpair/market-data-pipeline/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS ticks (
    instrument TEXT             NOT NULL,
    trade_id   BIGINT           NOT NULL,
    price      DOUBLE PRECISION NOT NULL,
    quantity   DOUBLE PRECISION NOT NULL,
    ts         BIGINT           NOT NULL,
    PRIMARY KEY (instrument, trade_id)
);
CREATE INDEX IF NOT EXISTS idx_ticks_instrument_ts ON ticks (instrument, ts);
`

// Connect opens the tick store, configures the connection pool and verifies
// reachability.
func Connect(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.PostgresMaxOpenConns)
	db.SetMaxIdleConns(cfg.PostgresMaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// EnsureSchema creates the ticks table and its indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
