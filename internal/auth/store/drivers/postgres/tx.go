package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/quackwell/internal/auth/store"
	"github.com/jackc/pgx/v5"
)

// ErrNestedTx is returned when a transaction is started from inside one.
var ErrNestedTx = errors.New("postgres: nested transactions are not supported")

type txStore struct {
	ctx context.Context
	tx  pgx.Tx
	now func() time.Time
}

func (t *txStore) Commit() error { return t.tx.Commit(t.ctx) }

func (t *txStore) Rollback() error {
	err := t.tx.Rollback(t.ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (t *txStore) Close() error                   { return nil }
func (t *txStore) Ping(ctx context.Context) error { return nil }
func (t *txStore) ApplyMigrations() error         { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) { return nil, ErrNestedTx }

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return ErrNestedTx
}

func (t *txStore) Users() store.Users { return &usersRepo{q: t.tx, now: t.now} }
func (t *txStore) Todos() store.Todos { return &todosRepo{q: t.tx, now: t.now} }
