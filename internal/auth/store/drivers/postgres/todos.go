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

const todoColumns = `id, user_id, content, due_date, created_at, updated_at`

type todosRepo struct {
	q   querier
	now func() time.Time
}

func scanTodo(row pgx.Row) (domain.Todo, error) {
	var t domain.Todo
	if err := row.Scan(&t.ID, &t.UserID, &t.Content, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Todo{}, err
	}
	t.DueDate = utcPtr(t.DueDate)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func (r *todosRepo) CreateTodo(ctx context.Context, t domain.Todo) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO todos (`+todoColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.UserID, t.Content, utcPtr(t.DueDate), t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if err != nil {
		return oops.With("operation", "create todo").With("user_id", t.UserID).Wrap(mapConstraint(err))
	}
	return nil
}

func (r *todosRepo) ListTodosByUser(ctx context.Context, userID string) ([]domain.Todo, error) {
	rows, err := r.q.Query(ctx, `SELECT `+todoColumns+` FROM todos WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, oops.With("operation", "list todos").With("user_id", userID).Wrap(err)
	}
	defer rows.Close()

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
	t, err := scanTodo(r.q.QueryRow(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return domain.Todo{}, oops.With("operation", "get todo").With("todo_id", id).Wrap(mapNotFound(err))
	}
	return t, nil
}

func (r *todosRepo) UpdateTodo(ctx context.Context, userID, id string, f domain.TodoFields) error {
	set, args := setClause(store.TodoAssignments(f), r.now())
	args = append(args, id, userID)

	query := fmt.Sprintf(`UPDATE todos SET %s WHERE id = $%d AND user_id = $%d`, set, len(args)-1, len(args))
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return oops.With("operation", "update todo").With("todo_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("operation", "update todo").With("todo_id", id).Wrap(store.ErrNotFound)
	}
	return nil
}

func (r *todosRepo) DeleteTodo(ctx context.Context, userID, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return oops.With("operation", "delete todo").With("todo_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("operation", "delete todo").With("todo_id", id).Wrap(store.ErrNotFound)
	}
	return nil
}
