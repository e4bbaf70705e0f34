package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/store"
	"github.com/samber/oops"
)

const userColumns = `id, email, username, password_hash, role, profile_image_url, deleted,
	refresh_token_hash, reset_token_hash, reset_token_expiry, created_at, updated_at`

type usersRepo struct {
	q   querier
	now func() time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u       domain.User
		role    string
		refresh sql.NullString
		reset   sql.NullString
		expiry  sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &role, &u.ProfileImageURL, &u.Deleted,
		&refresh, &reset, &expiry, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.Role = domain.Role(role)
	u.RefreshTokenHash = mapNullStringPtr(refresh)
	u.ResetTokenHash = mapNullStringPtr(reset)
	u.ResetTokenExpiry = mapNullTimePtr(expiry)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func (r *usersRepo) getOne(ctx context.Context, op, where string, arg any) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, oops.With("operation", op).Wrap(mapNotFound(err))
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, "get user by id", `id = ? AND deleted = 0`, id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, "get user by email", `email = ? AND deleted = 0`, email)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, "get user by username", `username = ? AND deleted = 0`, username)
}

func (r *usersRepo) GetUserByEmailIncludingDeleted(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, "get user by email including deleted", `email = ?`, email)
}

func (r *usersRepo) GetUserByUsernameIncludingDeleted(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, "get user by username including deleted", `username = ?`, username)
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE deleted = 0 ORDER BY id`)
	if err != nil {
		return nil, oops.With("operation", "list users").Wrap(err)
	}
	defer func() { _ = rows.Close() }()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, oops.With("operation", "scan user row").Wrap(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate users").Wrap(err)
	}
	return users, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := r.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Username, u.PasswordHash, string(u.Role), u.ProfileImageURL, u.Deleted,
		stringPtrArg(u.RefreshTokenHash), stringPtrArg(u.ResetTokenHash), store.NullableTime(u.ResetTokenExpiry),
		u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	if err != nil {
		return oops.With("operation", "create user").With("user_id", u.ID).Wrap(mapConstraint(err))
	}
	return nil
}

func (r *usersRepo) UpdateUserFields(ctx context.Context, id string, f domain.UserFields) error {
	set, args := setClause(store.UserAssignments(f), r.now())
	args = append(args, id)

	res, err := r.q.ExecContext(ctx, `UPDATE users SET `+set+` WHERE id = ? AND deleted = 0`, args...)
	if err != nil {
		return oops.With("operation", "update user").With("user_id", id).Wrap(mapConstraint(err))
	}
	return requireOneRow(res, "update user", id)
}

func (r *usersRepo) ConsumeResetToken(
	ctx context.Context,
	id, tokenHash string,
	now time.Time,
	newPasswordHash string,
) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET password_hash = ?, reset_token_hash = NULL, reset_token_expiry = NULL, updated_at = ?
		WHERE id = ? AND deleted = 0
		  AND reset_token_hash = ?
		  AND reset_token_expiry > ?`,
		newPasswordHash, r.now(), id, tokenHash, now.UTC(),
	)
	if err != nil {
		return false, oops.With("operation", "consume reset token").With("user_id", id).Wrap(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, oops.With("operation", "consume reset token").With("user_id", id).Wrap(err)
	}
	return n == 1, nil
}

func (r *usersRepo) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET reset_token_hash = NULL, reset_token_expiry = NULL, updated_at = ?
		WHERE reset_token_expiry IS NOT NULL AND reset_token_expiry <= ?`,
		r.now(), now.UTC(),
	)
	if err != nil {
		return 0, oops.With("operation", "clear expired reset tokens").Wrap(err)
	}
	return res.RowsAffected()
}

func requireOneRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return oops.With("operation", op).With("id", id).Wrap(err)
	}
	if n == 0 {
		return oops.With("operation", op).With("id", id).Wrap(store.ErrNotFound)
	}
	return nil
}

func stringPtrArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
