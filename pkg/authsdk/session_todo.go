package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

func (s *Session) CreateTodo(ctx context.Context, req CreateTodoRequest) (*TodoResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/todos", req)
	if err != nil {
		return nil, err
	}

	var todo TodoResponse
	if err := decodeJSON(resp, &todo, http.StatusCreated); err != nil {
		return nil, err
	}
	return &todo, nil
}

func (s *Session) ListTodos(ctx context.Context) ([]TodoResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/todos", nil)
	if err != nil {
		return nil, err
	}

	var todos []TodoResponse
	if err := decodeJSON(resp, &todos, http.StatusOK); err != nil {
		return nil, err
	}
	return todos, nil
}

func (s *Session) GetTodo(ctx context.Context, id string) (*TodoResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/todos/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var todo TodoResponse
	if err := decodeJSON(resp, &todo, http.StatusOK); err != nil {
		return nil, err
	}
	return &todo, nil
}

func (s *Session) UpdateTodo(ctx context.Context, id string, req UpdateTodoRequest) (*TodoResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPut, "/v1/todos/"+url.PathEscape(id), req)
	if err != nil {
		return nil, err
	}

	var todo TodoResponse
	if err := decodeJSON(resp, &todo, http.StatusOK); err != nil {
		return nil, err
	}
	return &todo, nil
}

func (s *Session) DeleteTodo(ctx context.Context, id string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/todos/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
