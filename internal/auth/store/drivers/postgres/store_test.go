package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/store"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)

	s := NewWithPool(mock)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func userRow(id, email string, refresh *string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "email", "username", "password_hash", "role", "profile_image_url", "deleted",
		"refresh_token_hash", "reset_token_hash", "reset_token_expiry", "created_at", "updated_at",
	}).AddRow(
		id, email, "alice", "hash", "client", "", false,
		refresh, (*string)(nil), (*time.Time)(nil), fixedNow, fixedNow,
	)
}

func TestUsersGetUserByEmail(t *testing.T) {
	fp := "fingerprint"

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantID    string
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .* FROM users WHERE email = \$1 AND NOT deleted`).
					WithArgs("alice@example.com").
					WillReturnRows(userRow("01USER", "alice@example.com", &fp))
			},
			wantID: "01USER",
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .* FROM users WHERE email = \$1`).
					WithArgs("alice@example.com").
					WillReturnRows(pgxmock.NewRows([]string{"id"}))
			},
			wantErr: store.ErrNotFound,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .* FROM users`).
					WithArgs("alice@example.com").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.setupMock(mock)

			u, err := s.Users().GetUserByEmail(context.Background(), "alice@example.com")
			switch {
			case tt.wantErr == nil:
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, u.ID)
				assert.Equal(t, domain.RoleClient, u.Role)
				require.NotNil(t, u.RefreshTokenHash)
				assert.Equal(t, fp, *u.RefreshTokenHash)
				assert.Nil(t, u.ResetTokenHash)
			case errors.Is(tt.wantErr, store.ErrNotFound):
				require.ErrorIs(t, err, store.ErrNotFound)
			default:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUsersCreateUserUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(
			"01USER", "a@example.com", "a", "hash", "client", "", false,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), fixedNow, fixedNow,
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := s.Users().CreateUser(context.Background(), domain.User{
		ID: "01USER", Email: "a@example.com", Username: "a", PasswordHash: "hash", Role: domain.RoleClient,
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersUpdateUserFields(t *testing.T) {
	t.Run("renders numbered placeholders", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET username = $1, refresh_token_hash = $2, updated_at = $3 WHERE id = $4 AND NOT deleted`)).
			WithArgs("bob", nil, fixedNow, "01USER").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := s.Users().UpdateUserFields(context.Background(), "01USER", domain.UserFields{
			Username:         domain.Ptr("bob"),
			RefreshTokenHash: domain.Ptr(""),
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows is not found", func(t *testing.T) {
		// Also the answer for a soft deleted id, which the WHERE clause skips.
		s, mock := newMockStore(t)

		mock.ExpectExec(`UPDATE users SET`).
			WithArgs(true, fixedNow, "01GONE").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := s.Users().UpdateUserFields(context.Background(), "01GONE", domain.UserFields{Deleted: domain.Ptr(true)})
		require.ErrorIs(t, err, store.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUsersConsumeResetToken(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"consumed", 1, true},
		{"already used or expired", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)

			mock.ExpectExec(`UPDATE users\s+SET password_hash = \$1, reset_token_hash = NULL`).
				WithArgs("new-hash", fixedNow, "01USER", "fp", fixedNow).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			ok, err := s.Users().ConsumeResetToken(context.Background(), "01USER", "fp", fixedNow, "new-hash")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTodosUpdateTodoScopesToOwner(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE todos SET content = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`)).
		WithArgs("milk", fixedNow, "01TODO", "01USER").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.Todos().UpdateTodo(context.Background(), "01USER", "01TODO", domain.TodoFields{Content: domain.Ptr("milk")})
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTodosListTodosByUser(t *testing.T) {
	s, mock := newMockStore(t)
	due := fixedNow.Add(24 * time.Hour)

	rows := pgxmock.NewRows([]string{"id", "user_id", "content", "due_date", "created_at", "updated_at"}).
		AddRow("01A", "01USER", "first", &due, fixedNow, fixedNow).
		AddRow("01B", "01USER", "second", (*time.Time)(nil), fixedNow, fixedNow)
	mock.ExpectQuery(`SELECT .* FROM todos WHERE user_id = \$1 ORDER BY id`).
		WithArgs("01USER").
		WillReturnRows(rows)

	todos, err := s.Todos().ListTodosByUser(context.Background(), "01USER")
	require.NoError(t, err)
	require.Len(t, todos, 2)
	require.NotNil(t, todos[0].DueDate)
	assert.True(t, due.Equal(*todos[0].DueDate))
	assert.Nil(t, todos[1].DueDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM todos`).
			WithArgs("01TODO", "01USER").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		err := s.WithTx(context.Background(), func(tx store.Tx) error {
			return tx.Todos().DeleteTodo(context.Background(), "01USER", "01TODO")
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		s, mock := newMockStore(t)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := s.WithTx(context.Background(), func(tx store.Tx) error {
			require.ErrorIs(t, tx.WithTx(context.Background(), nil), ErrNestedTx)
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/q":   "pgx5://u:p@db:5432/q",
		"postgresql://u:p@db:5432/q": "pgx5://u:p@db:5432/q",
		"pgx5://u:p@db:5432/q":       "pgx5://u:p@db:5432/q",
	}
	for in, want := range tests {
		assert.Equal(t, want, MigrateURL(in))
	}
}

func TestApplyMigrationsNeedsDSN(t *testing.T) {
	s, _ := newMockStore(t)
	require.ErrorIs(t, s.ApplyMigrations(), ErrNoDSN)
}
