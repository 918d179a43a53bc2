package database

import (
	"context"
	"errors"
	"strings"

	"github.com/alatoul/ride-hailing/pkg/resilience"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool and pgx.Tx used by repositories.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// TxBeginner starts transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DB is a Querier that can also open transactions, like *pgxpool.Pool.
type DB interface {
	Querier
	TxBeginner
}

// RetryableQuery runs a read query and retries transient postgres failures.
// Only use it for statements that are safe to repeat.
func RetryableQuery[T any](ctx context.Context, db Querier, query string, args []interface{}, scan func(pgx.Rows) (T, error)) (T, error) {
	result, err := resilience.RetryWithName(ctx, readRetryConfig(), func(ctx context.Context) (interface{}, error) {
		rows, err := db.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scan(rows)
	}, "database.query")
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// RetryableQueryRow is RetryableQuery for single-row reads.
func RetryableQueryRow[T any](ctx context.Context, db Querier, query string, args []interface{}, scan func(pgx.Row) (T, error)) (T, error) {
	result, err := resilience.RetryWithName(ctx, readRetryConfig(), func(ctx context.Context) (interface{}, error) {
		return scan(db.QueryRow(ctx, query, args...))
	}, "database.query_row")
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// RetryableTransaction runs fn inside a transaction, retrying the whole
// transaction on serialization failures and deadlocks.
func RetryableTransaction(ctx context.Context, db TxBeginner, fn func(pgx.Tx) error) error {
	cfg := readRetryConfig()
	cfg.RetryableChecker = isSerializationFailure

	_, err := resilience.RetryWithName(ctx, cfg, func(ctx context.Context) (interface{}, error) {
		tx, err := db.Begin(ctx)
		if err != nil {
			return nil, err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
		return nil, tx.Commit(ctx)
	}, "database.transaction")
	return err
}

func readRetryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryableChecker = isPostgresRetryable
	return cfg
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// isPostgresRetryable reports whether err looks transient.
func isPostgresRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "53000", "53300", "53400",
			"08000", "08003", "08006", "57P01", "57P02", "57P03":
			return true
		default:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	for _, transient := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"unexpected eof",
		"server closed",
		"too many connections",
	} {
		if strings.Contains(msg, transient) {
			return true
		}
	}
	return false
}
