package http

import (
	"net/http"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/service"
	"github.com/aussiebroadwan/quackwell/pkg/authsdk"
	"github.com/aussiebroadwan/quackwell/pkg/httpx"
)

type TodosHandler struct {
	*Router
}

// Create adds a todo for the caller.
//
//	@Summary		Create todo
//	@Tags			Todos
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.CreateTodoRequest	true	"Todo"
//	@Success		201		{object}	authsdk.TodoResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		401		{object}	authsdk.ErrorResponse
//	@Router			/v1/todos [post].
func (h *TodosHandler) Create(w http.ResponseWriter, r *http.Request, id *service.Identity) {
	var req authsdk.CreateTodoRequest
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := h.deps.Todos.Create(r.Context(), id.ID, service.TodoInput{Content: req.Content, DueDate: req.DueDate})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, todoResponse(t))
}

// List returns the caller's todos, oldest first.
//
//	@Summary		List todos
//	@Tags			Todos
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		authsdk.TodoResponse
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Router			/v1/todos [get].
func (h *TodosHandler) List(w http.ResponseWriter, r *http.Request, id *service.Identity) {
	todos, err := h.deps.Todos.List(r.Context(), id.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]authsdk.TodoResponse, 0, len(todos))
	for _, t := range todos {
		out = append(out, todoResponse(t))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Get returns one of the caller's todos.
//
//	@Summary		Get todo
//	@Tags			Todos
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Todo ID"
//	@Success		200	{object}	authsdk.TodoResponse
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Failure		404	{object}	authsdk.ErrorResponse	"No such todo for this user"
//	@Router			/v1/todos/{id} [get].
func (h *TodosHandler) Get(w http.ResponseWriter, r *http.Request, id *service.Identity) {
	t, err := h.deps.Todos.Get(r.Context(), id.ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, todoResponse(t))
}

// Update edits one of the caller's todos.
//
//	@Summary		Update todo
//	@Tags			Todos
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Todo ID"
//	@Param			request	body		authsdk.UpdateTodoRequest	true	"Fields to change"
//	@Success		200		{object}	authsdk.TodoResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		401		{object}	authsdk.ErrorResponse
//	@Failure		404		{object}	authsdk.ErrorResponse
//	@Router			/v1/todos/{id} [put].
func (h *TodosHandler) Update(w http.ResponseWriter, r *http.Request, id *service.Identity) {
	var req authsdk.UpdateTodoRequest
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := h.deps.Todos.Update(r.Context(), id.ID, r.PathValue("id"), domain.TodoFields{
		Content:      req.Content,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, todoResponse(t))
}

// Delete removes one of the caller's todos.
//
//	@Summary		Delete todo
//	@Tags			Todos
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Todo ID"
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Failure		404	{object}	authsdk.ErrorResponse
//	@Router			/v1/todos/{id} [delete].
func (h *TodosHandler) Delete(w http.ResponseWriter, r *http.Request, id *service.Identity) {
	if err := h.deps.Todos.Delete(r.Context(), id.ID, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
