package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/store"
	"github.com/samber/oops"
)

const todoColumns = `id, user_id, content, due_date, created_at, updated_at`

type todosRepo struct {
	q   querier
	now func() time.Time
}

func scanTodo(row rowScanner) (domain.Todo, error) {
	var (
		t   domain.Todo
		due sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Content, &due, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Todo{}, err
	}
	t.DueDate = mapNullTimePtr(due)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func (r *todosRepo) CreateTodo(ctx context.Context, t domain.Todo) error {
	now := r.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO todos (`+todoColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Content, store.NullableTime(t.DueDate), t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if err != nil {
		return oops.With("operation", "create todo").With("user_id", t.UserID).Wrap(mapConstraint(err))
	}
	return nil
}

func (r *todosRepo) ListTodosByUser(ctx context.Context, userID string) ([]domain.Todo, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, oops.With("operation", "list todos").With("user_id", userID).Wrap(err)
	}
	defer func() { _ = rows.Close() }()

	todos := []domain.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, oops.With("operation", "scan todo row").Wrap(err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate todos").Wrap(err)
	}
	return todos, nil
}

func (r *todosRepo) GetTodo(ctx context.Context, userID, id string) (domain.Todo, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTodo(row)
	if err != nil {
		return domain.Todo{}, oops.With("operation", "get todo").With("todo_id", id).Wrap(mapNotFound(err))
	}
	return t, nil
}

func (r *todosRepo) UpdateTodo(ctx context.Context, userID, id string, f domain.TodoFields) error {
	set, args := setClause(store.TodoAssignments(f), r.now())
	args = append(args, id, userID)

	res, err := r.q.ExecContext(ctx, `UPDATE todos SET `+set+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return oops.With("operation", "update todo").With("todo_id", id).Wrap(err)
	}
	return requireOneRow(res, "update todo", id)
}

func (r *todosRepo) DeleteTodo(ctx context.Context, userID, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM todos WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return oops.With("operation", "delete todo").With("todo_id", id).Wrap(err)
	}
	return requireOneRow(res, "delete todo", id)
}
