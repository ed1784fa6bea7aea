package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/quantpair/market-data-pipeline/pkg/marketdata"
)

// TickRepo is the durable tick store backed by PostgreSQL. Writes are
// idempotent on the (instrument, trade_id) primary key, so redelivered trades
// from feed reconnects never produce duplicate rows or errors. The repo is
// written to by exactly one goroutine (the persister) and read concurrently
// by the analytics engine; no row is ever updated after insert.
type TickRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewTickRepo(db *sqlx.DB, timeout time.Duration) *TickRepo {
	return &TickRepo{
		db:      db,
		timeout: timeout,
	}
}

// InsertBatch writes a batch of ticks atomically, skipping any whose dedup
// key already exists. It returns the number of rows actually inserted.
func (r *TickRepo) InsertBatch(ctx context.Context, ticks []marketdata.Tick) (int64, error) {
	if len(ticks) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(ticks)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ticks (instrument, trade_id, price, quantity, ts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instrument, trade_id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, tick := range ticks {
		res, err := stmt.ExecContext(ctx,
			tick.Instrument, tick.TradeID, tick.Price, tick.Quantity, tick.Timestamp)
		if err != nil {
			return 0, fmt.Errorf("failed to insert tick %s/%d: %w", tick.Instrument, tick.TradeID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return inserted, nil
}

// ListByInstrument retrieves an instrument's ticks within [from, to),
// ordered by timestamp (trade id breaks ties deterministically).
func (r *TickRepo) ListByInstrument(ctx context.Context, instrument string, from, to int64) ([]marketdata.Tick, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT instrument, trade_id, price, quantity, ts
		FROM ticks
		WHERE instrument = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts ASC, trade_id ASC`

	rows, err := r.db.QueryxContext(ctx, query, instrument, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks for %s: %w", instrument, err)
	}
	defer rows.Close()

	var ticks []marketdata.Tick
	for rows.Next() {
		var t marketdata.Tick
		if err := rows.Scan(&t.Instrument, &t.TradeID, &t.Price, &t.Quantity, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ticks, nil
}

// Latest returns the most recent tick for an instrument, or nil if none
// exists yet.
func (r *TickRepo) Latest(ctx context.Context, instrument string) (*marketdata.Tick, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT instrument, trade_id, price, quantity, ts
		FROM ticks
		WHERE instrument = $1
		ORDER BY ts DESC, trade_id DESC
		LIMIT 1`

	var t marketdata.Tick
	row := r.db.QueryRowxContext(ctx, query, instrument)
	if err := row.Scan(&t.Instrument, &t.TradeID, &t.Price, &t.Quantity, &t.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest tick for %s: %w", instrument, err)
	}
	return &t, nil
}

// Count returns the number of stored ticks in [from, to).
func (r *TickRepo) Count(ctx context.Context, from, to int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int64
	err := r.db.QueryRowxContext(ctx,
		`SELECT COUNT(*) FROM ticks WHERE ts >= $1 AND ts < $2`, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ticks: %w", err)
	}
	return count, nil
}
