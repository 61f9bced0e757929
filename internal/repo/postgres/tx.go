package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	if pool == nil {
		return errors.New("postgres pool is nil")
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// WithSavepoint runs fn inside a nested transaction. An error from fn rolls
// back only the work done since the savepoint; the outer tx stays usable.
func WithSavepoint(ctx context.Context, tx pgx.Tx, fn func(context.Context, pgx.Tx) error) error {
	if tx == nil {
		return errors.New("transaction is required")
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin savepoint: %w", err)
	}

	defer func() {
		_ = sp.Rollback(ctx)
	}()

	if err := fn(ctx, sp); err != nil {
		return err
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}

	return nil
}

// Transactor exposes WithTx and WithSavepoint as methods so services can
// depend on an interface.
type Transactor struct {
	pool *pgxpool.Pool
}

func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

func (t *Transactor) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return WithTx(ctx, t.pool, fn)
}

func (t *Transactor) WithSavepoint(ctx context.Context, tx pgx.Tx, fn func(context.Context, pgx.Tx) error) error {
	return WithSavepoint(ctx, tx, fn)
}
