package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/store"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
)

const userColumns = `id, email, username, password_hash, role, profile_image_url, deleted,
	refresh_token_hash, reset_token_hash, reset_token_expiry, created_at, updated_at`

type usersRepo struct {
	q   querier
	now func() time.Time
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &role, &u.ProfileImageURL, &u.Deleted,
		&u.RefreshTokenHash, &u.ResetTokenHash, &u.ResetTokenExpiry, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.ResetTokenExpiry = utcPtr(u.ResetTokenExpiry)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func (r *usersRepo) getOne(ctx context.Context, op, where string, arg any) (domain.User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		return domain.User{}, oops.With("operation", op).Wrap(mapNotFound(err))
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, "get user by id", `id = $1 AND NOT deleted`, id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, "get user by email", `email = $1 AND NOT deleted`, email)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, "get user by username", `username = $1 AND NOT deleted`, username)
}

func (r *usersRepo) GetUserByEmailIncludingDeleted(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, "get user by email including deleted", `email = $1`, email)
}

func (r *usersRepo) GetUserByUsernameIncludingDeleted(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, "get user by username including deleted", `username = $1`, username)
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.Query(ctx, `SELECT `+userColumns+` FROM users WHERE NOT deleted ORDER BY id`)
	if err != nil {
		return nil, oops.With("operation", "list users").Wrap(err)
	}
	defer rows.Close()

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
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, u.Email, u.Username, u.PasswordHash, string(u.Role), u.ProfileImageURL, u.Deleted,
		u.RefreshTokenHash, u.ResetTokenHash, utcPtr(u.ResetTokenExpiry), u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	if err != nil {
		return oops.With("operation", "create user").With("user_id", u.ID).Wrap(mapConstraint(err))
	}
	return nil
}

func (r *usersRepo) UpdateUserFields(ctx context.Context, id string, f domain.UserFields) error {
	set, args := setClause(store.UserAssignments(f), r.now())
	args = append(args, id)

	tag, err := r.q.Exec(ctx, fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d AND NOT deleted`, set, len(args)), args...)
	if err != nil {
		return oops.With("operation", "update user").With("user_id", id).Wrap(mapConstraint(err))
	}
	if tag.RowsAffected() == 0 {
		return oops.With("operation", "update user").With("user_id", id).Wrap(store.ErrNotFound)
	}
	return nil
}

func (r *usersRepo) ConsumeResetToken(
	ctx context.Context,
	id, tokenHash string,
	now time.Time,
	newPasswordHash string,
) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE users
		SET password_hash = $1, reset_token_hash = NULL, reset_token_expiry = NULL, updated_at = $2
		WHERE id = $3 AND NOT deleted
		  AND reset_token_hash = $4
		  AND reset_token_expiry > $5`,
		newPasswordHash, r.now(), id, tokenHash, now.UTC(),
	)
	if err != nil {
		return false, oops.With("operation", "consume reset token").With("user_id", id).Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *usersRepo) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE users
		SET reset_token_hash = NULL, reset_token_expiry = NULL, updated_at = $1
		WHERE reset_token_expiry IS NOT NULL AND reset_token_expiry <= $2`,
		r.now(), now.UTC(),
	)
	if err != nil {
		return 0, oops.With("operation", "clear expired reset tokens").Wrap(err)
	}
	return tag.RowsAffected(), nil
}
