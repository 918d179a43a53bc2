package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Checker is a health check function that returns an error if unhealthy.
// It matches the check signature accepted by common.ReadinessProbe.
type Checker = func() error

// CheckerConfig holds configuration for health checkers
type CheckerConfig struct {
	Timeout time.Duration
}

// DefaultCheckerConfig returns default configuration for health checkers
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		Timeout: 2 * time.Second,
	}
}

// PingFunc is any dependency probe that honors a context deadline.
type PingFunc func(ctx context.Context) error

// PingChecker adapts ping into a Checker bounded by cfg.Timeout.
func PingChecker(name string, ping PingFunc, cfg CheckerConfig) Checker {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()

		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
		return nil
	}
}

// PostgresChecker probes a pgx pool.
func PostgresChecker(pool *pgxpool.Pool) Checker {
	return PingChecker("database", func(ctx context.Context) error {
		if pool == nil {
			return errors.New("database pool is nil")
		}
		return pool.Ping(ctx)
	}, DefaultCheckerConfig())
}

// SQLChecker probes a database/sql handle and requires at least one open
// connection afterwards.
func SQLChecker(db *sql.DB) Checker {
	return PingChecker("database", func(ctx context.Context) error {
		if db == nil {
			return errors.New("database connection is nil")
		}
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if db.Stats().OpenConnections == 0 {
			return errors.New("no open database connections")
		}
		return nil
	}, DefaultCheckerConfig())
}

// RedisChecker probes a redis client.
func RedisChecker(client *redis.Client) Checker {
	return PingChecker("redis", func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		return client.Ping(ctx).Err()
	}, DefaultCheckerConfig())
}

// AsyncChecker bounds a checker that does not honor contexts itself.
func AsyncChecker(checker Checker, timeout time.Duration) Checker {
	return func() error {
		errChan := make(chan error, 1)
		go func() {
			errChan <- checker()
		}()

		select {
		case err := <-errChan:
			return err
		case <-time.After(timeout):
			return fmt.Errorf("health check timeout after %v", timeout)
		}
	}
}
