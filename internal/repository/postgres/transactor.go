package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Transactor runs a unit of work in one pgx transaction. The tx travels in
// ctx; repositories pick it up through execQueryer.
type Transactor struct {
	db     *DB
	logger *zap.Logger
	opts   pgx.TxOptions
}

func NewTransactor(db *DB, logger *zap.Logger) *Transactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transactor{
		db:     db,
		logger: logger.With(zap.String("component", "pg.tx")),
		opts:   pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
	}
}

// WithTx commits when fn returns nil and rolls back otherwise, including on
// panic. A nested call joins the outer transaction and leaves the outcome to
// it. Errors from fn are returned unwrapped.
func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := t.db.Pool.BeginTx(ctx, t.opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			t.rollback(tx)
			panic(p)
		}
		if err != nil {
			t.rollback(tx)
			return
		}
		if cerr := tx.Commit(txCtx); cerr != nil {
			t.logger.Error("commit", zap.Error(cerr))
			err = fmt.Errorf("commit: %w", cerr)
		}
	}()

	return fn(txCtx)
}

// rollback uses a fresh context so a cancelled request still releases the tx.
func (t *Transactor) rollback(tx pgx.Tx) {
	if err := tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		t.logger.Error("rollback", zap.Error(err))
	}
}

type txKey struct{}

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok && tx != nil
}

type execQueryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (db *DB) execQueryer(ctx context.Context) execQueryer {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db.Pool
}
