package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/store"
	"github.com/aussiebroadwan/quackwell/pkg/idx"
)

// MaxTodoContent bounds a todo's text, in characters.
const MaxTodoContent = 2000

type TodoInput struct {
	Content string
	DueDate *time.Time
}

// TodoService manages todos. Every operation is scoped to the owning user;
// another user's todo looks exactly like a missing one.
type TodoService struct {
	Store store.Store
	Now   func() time.Time
}

func (s *TodoService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *TodoService) Create(ctx context.Context, userID string, in TodoInput) (domain.Todo, error) {
	if utf8.RuneCountInString(in.Content) > MaxTodoContent {
		return domain.Todo{}, fail(ErrBadRequest, "TODO_TOO_LONG", "validate content")
	}

	now := s.now()
	t := domain.Todo{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		Content:   in.Content,
		DueDate:   in.DueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Todos().CreateTodo(ctx, t); err != nil {
		return domain.Todo{}, internal("TODO_CREATE_FAILED", "create todo", err)
	}
	return t, nil
}

func (s *TodoService) List(ctx context.Context, userID string) ([]domain.Todo, error) {
	todos, err := s.Store.Todos().ListTodosByUser(ctx, userID)
	if err != nil {
		return nil, internal("TODO_LIST_FAILED", "list todos", err)
	}
	return todos, nil
}

func (s *TodoService) Get(ctx context.Context, userID, id string) (domain.Todo, error) {
	if _, err := idx.Parse(id); err != nil {
		return domain.Todo{}, fail(ErrNotFound, "TODO_NOT_FOUND", "parse id")
	}

	t, err := s.Store.Todos().GetTodo(ctx, userID, id)
	if err != nil {
		return domain.Todo{}, mapTodoErr(err, "get todo")
	}
	return t, nil
}

func (s *TodoService) Update(ctx context.Context, userID, id string, f domain.TodoFields) (domain.Todo, error) {
	if _, err := idx.Parse(id); err != nil {
		return domain.Todo{}, fail(ErrNotFound, "TODO_NOT_FOUND", "parse id")
	}
	if f.Content != nil && utf8.RuneCountInString(*f.Content) > MaxTodoContent {
		return domain.Todo{}, fail(ErrBadRequest, "TODO_TOO_LONG", "validate content")
	}

	if f.Content != nil || f.DueDate != nil || f.ClearDueDate {
		if err := s.Store.Todos().UpdateTodo(ctx, userID, id, f); err != nil {
			return domain.Todo{}, mapTodoErr(err, "update todo")
		}
	}
	return s.Get(ctx, userID, id)
}

func (s *TodoService) Delete(ctx context.Context, userID, id string) error {
	if _, err := idx.Parse(id); err != nil {
		return fail(ErrNotFound, "TODO_NOT_FOUND", "parse id")
	}
	if err := s.Store.Todos().DeleteTodo(ctx, userID, id); err != nil {
		return mapTodoErr(err, "delete todo")
	}
	return nil
}

func mapTodoErr(err error, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fail(ErrNotFound, "TODO_NOT_FOUND", op)
	}
	return internal("TODO_FAILED", op, err)
}
