// Package txn provides a transactional unit of work over PostgreSQL.
//
// A unit of work is a function that receives a context carrying the active
// transaction. Repositories resolve their querier through Querier, so any
// repository call made with that context participates in the transaction.
package txn

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner starts transactions. *pgxpool.Pool implements it.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Runner executes a unit of work atomically.
type Runner interface {
	Run(ctx context.Context, work func(ctx context.Context) error) error
}

type txKey struct{}

var _ Runner = (*Manager)(nil)

// Manager opens one transaction per unit of work.
type Manager struct {
	db   Beginner
	opts pgx.TxOptions
}

// NewManager returns a Manager using repeatable read isolation, which makes
// concurrent writers to the same row fail with a serialization error instead
// of silently overwriting each other.
func NewManager(db Beginner) *Manager {
	return &Manager{
		db:   db,
		opts: pgx.TxOptions{IsoLevel: pgx.RepeatableRead},
	}
}

// Run executes work inside a transaction. Every write made through the
// provided context becomes visible together on commit, or none does.
//
// If work returns an error the transaction is rolled back and that error is
// returned unchanged. If work panics the transaction is rolled back and the
// panic is propagated. A Run nested inside another Run joins the outer
// transaction.
func (m *Manager) Run(ctx context.Context, work func(ctx context.Context) error) (rerr error) {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return work(ctx)
	}

	tx, err := m.db.BeginTx(ctx, m.opts)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// Rollback must run even when ctx is already canceled.
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := work(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		committed = true // pgx rolls back on failed commit
		return errors.Wrap(err, "commit transaction")
	}
	committed = true
	return nil
}

// Do is Run for work that produces a value.
func Do[T any](ctx context.Context, r Runner, work func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Run(ctx, func(ctx context.Context) error {
		v, err := work(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Querier returns the transaction bound to ctx, or fallback when ctx carries
// none.
func Querier(ctx context.Context, fallback DB) DB {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return fallback
}

// IsConflict reports whether err is a transient write conflict: a
// serialization failure or a deadlock.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	default:
		return false
	}
}
