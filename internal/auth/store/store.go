package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and so a transaction can only be opened from the root.
type Store interface {
	Users() Users
	Todos() Todos

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a live (not soft deleted) user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used by login and federated login.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// The IncludingDeleted lookups back the uniqueness checks; a deleted
	// account still owns its email and username.
	GetUserByEmailIncludingDeleted(ctx context.Context, email string) (domain.User, error)
	GetUserByUsernameIncludingDeleted(ctx context.Context, username string) (domain.User, error)

	// ListUsers returns live users, oldest first.
	ListUsers(ctx context.Context) ([]domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists on a duplicate email or username.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateUserFields applies a partial update to a live user and bumps
	// updated_at. Returns ErrNotFound when the id is unknown or soft deleted.
	UpdateUserFields(ctx context.Context, id string, f domain.UserFields) error

	// ConsumeResetToken swaps the password hash and clears the reset fields,
	// but only while tokenHash is still the stored one and unexpired at now.
	// Reports false when the condition did not hold.
	ConsumeResetToken(ctx context.Context, id, tokenHash string, now time.Time, newPasswordHash string) (bool, error)

	// ClearExpiredResetTokens is housekeeping; returns the rows touched.
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

type Todos interface {
	CreateTodo(ctx context.Context, t domain.Todo) error

	// ListTodosByUser returns a user's todos, oldest first.
	ListTodosByUser(ctx context.Context, userID string) ([]domain.Todo, error)

	// GetTodo is scoped to the owner; another user's todo is ErrNotFound.
	GetTodo(ctx context.Context, userID, id string) (domain.Todo, error)

	UpdateTodo(ctx context.Context, userID, id string, f domain.TodoFields) error

	DeleteTodo(ctx context.Context, userID, id string) error
}
