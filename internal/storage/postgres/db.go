package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventviewer/server/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// conn holds the pool and, inside a transaction, the open tx. Every
// repository embeds it.
type conn struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (c conn) queryer() queryer {
	if c.tx != nil {
		return c.tx
	}
	return c.pool
}

// begin opens a transaction unless one is already open, in which case the
// returned committer leaves commit to the outer owner.
func (c conn) begin(ctx context.Context) (conn, *txCommitter, error) {
	if c.tx != nil {
		return c, &txCommitter{}, nil
	}
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return conn{}, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return conn{pool: c.pool, tx: tx}, &txCommitter{tx: tx}, nil
}

type txCommitter struct {
	tx pgx.Tx
}

func (tc *txCommitter) Commit(ctx context.Context) (err error) {
	if tc.tx == nil {
		return nil
	}
	start := time.Now()
	defer func() { metrics.RecordQuery("tx_commit", start, err) }()
	return tc.tx.Commit(ctx)
}

// Rollback after a successful Commit is a no-op.
func (tc *txCommitter) Rollback(ctx context.Context) error {
	if tc.tx == nil {
		return nil
	}
	if err := tc.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const invalidTextRepresentation = "22P02"

// isInvalidInput reports a malformed literal such as a non-UUID id. Lookups
// treat it like a missing row.
func isInvalidInput(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || isInvalidInput(err)
}
