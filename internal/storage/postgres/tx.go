package postgres

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type txKey struct{}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// TxOptions controls isolation and retry of UnitOfWork transactions.
type TxOptions struct {
	IsoLevel    pgx.TxIsoLevel
	MaxRetries  int
	BaseBackoff time.Duration
}

// DefaultTxOptions uses read committed isolation; callers take explicit row
// locks where they need them.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsoLevel:    pgx.ReadCommitted,
		MaxRetries:  3,
		BaseBackoff: 50 * time.Millisecond,
	}
}

// UnitOfWork runs functions inside one database transaction, retrying on
// serialization failures, deadlocks and lock timeouts.
type UnitOfWork struct {
	pool *pgxpool.Pool
	opts TxOptions
	lg   *zap.Logger
}

// NewUnitOfWork returns a UnitOfWork on pool.
func NewUnitOfWork(pool *pgxpool.Pool, opts TxOptions, lg *zap.Logger) *UnitOfWork {
	if lg == nil {
		lg = zap.NewNop()
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = DefaultTxOptions().BaseBackoff
	}
	return &UnitOfWork{pool: pool, opts: opts, lg: lg}
}

// RunInTx runs fn in a transaction. A call nested in another RunInTx joins
// the outer transaction.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	backoff := u.opts.BaseBackoff
	for attempt := 0; ; attempt++ {
		err := u.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt >= u.opts.MaxRetries {
			return fmt.Errorf("max retries (%d) exceeded: %w", u.opts.MaxRetries, err)
		}

		jitter := time.Duration(rand.Int64N(int64(backoff/4) + 1))
		u.lg.Debug("Retrying transaction",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff+jitter),
			zap.Error(err),
		)
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
}

func (u *UnitOfWork) runOnce(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: u.opts.IsoLevel})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			u.lg.Warn("Rollback failed", zap.Error(rbErr))
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
