// Package postgres is the PostgreSQL driver for store.Store, built on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/quackwell/internal/auth/store"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// querier abstracts query execution for both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// poolIface is the subset of *pgxpool.Pool the store needs. pgxmock's
// PgxPoolIface satisfies it, which is how the repositories are unit tested.
type poolIface interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// ConnectOptions controls the startup connection attempt.
type ConnectOptions struct {
	// Attempts is how many times the first ping is retried (default 5).
	Attempts uint64
	// Backoff is the initial exponential backoff (default 500ms).
	Backoff time.Duration
}

type Store struct {
	pool poolIface
	dsn  string
	now  func() time.Time
}

// Open connects to PostgreSQL and waits for the server to answer a ping,
// retrying with exponential backoff while it starts up.
func Open(ctx context.Context, dsn string, opts ConnectOptions) (*Store, error) {
	if opts.Attempts == 0 {
		opts.Attempts = 5
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("driver", "postgres").Wrap(err)
	}

	backoff := retry.WithMaxRetries(opts.Attempts, retry.NewExponential(opts.Backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORE_OPEN_FAILED").With("driver", "postgres").With("attempts", opts.Attempts).Wrap(err)
	}

	return newStore(pool, dsn), nil
}

// NewWithPool wraps an existing pool. Used by tests with pgxmock.
func NewWithPool(pool poolIface) *Store {
	return newStore(pool, "")
}

func newStore(pool poolIface, dsn string) *Store {
	return &Store{
		pool: pool,
		dsn:  dsn,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, oops.With("operation", "begin tx").Wrap(err)
	}
	return &txStore{ctx: ctx, tx: tx, now: s.now}, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Users() store.Users { return &usersRepo{q: s.pool, now: s.now} }
func (s *Store) Todos() store.Todos { return &todosRepo{q: s.pool, now: s.now} }

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %s", store.ErrAlreadyExists, pgErr.ConstraintName)
	}
	return err
}

// setClause renders assignments as "a = $1, b = $2" plus a trailing
// updated_at. Placeholders continue from the returned argument count.
func setClause(as []store.Assignment, now time.Time) (string, []any) {
	parts := make([]string, 0, len(as)+1)
	args := make([]any, 0, len(as)+1)
	for _, a := range as {
		args = append(args, a.Value)
		parts = append(parts, fmt.Sprintf("%s = $%d", a.Column, len(args)))
	}
	args = append(args, now)
	parts = append(parts, fmt.Sprintf("updated_at = $%d", len(args)))
	return strings.Join(parts, ", "), args
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
