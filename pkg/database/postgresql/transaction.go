package postgresql

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type txKey struct{}

// WithBracket runs fn inside one database transaction with journal-bracket
// semantics: the transaction commits even when fn returns an error, so
// mutations fn already performed stay applied and the caller's compensation
// logic is preserved durably. Rollback happens only when fn panics or the
// transaction itself cannot be driven.
func WithBracket(ctx context.Context, db Client, fn func(context.Context) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	fnErr := fn(txCtx)
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	return fnErr
}

// InBracket reports whether ctx already carries an open transaction.
func InBracket(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

// GetDBClient returns the transaction carried by ctx if present, otherwise
// the default client.
func GetDBClient(ctx context.Context, defaultClient Client) Client {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return defaultClient
}
