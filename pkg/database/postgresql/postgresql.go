// Package postgresql wraps pgx connection pooling and the
// transaction-in-context convention used by the postgres store backend.
package postgresql

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osdev-lab/fscore/internal/config"
	"github.com/osdev-lab/fscore/pkg/logging"
	"github.com/osdev-lab/fscore/pkg/logging/slogext"
)

// Client is the query surface shared by a pool and an open transaction, so
// store code runs the same SQL inside or outside a bracket.
type Client interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	instance *pgxpool.Pool
	once     sync.Once
)

// MustNewClient connects the process-wide pool, panicking on failure since
// nothing works without the database.
func MustNewClient(ctx context.Context, cfg config.DatabaseConfig) *pgxpool.Pool {
	once.Do(func() {
		const op = "postgresql.MustNewClient"

		logger := logging.GetLoggerFromContextWithOp(ctx, op)

		pool, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			logger.Error("Failed to create connection pool", slogext.Err(err))
			panic(err)
		}
		if err = pool.Ping(ctx); err != nil {
			logger.Error("Failed to connect to database", slogext.Err(err))
			panic(err)
		}

		logger.Info("Connected to database")
		instance = pool
	})

	return instance
}
