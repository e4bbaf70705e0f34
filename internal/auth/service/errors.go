package service

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Error kinds surfaced to callers. The HTTP layer maps each to one status
// code; anything wrapping ErrInternal is logged and reported generically.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not_found")
	ErrBadRequest   = errors.New("bad_request")
	ErrInternal     = errors.New("internal_error")
)

// fail tags a caller-facing sentinel with an error code and the operation
// that produced it.
func fail(sentinel error, code, operation string) error {
	return oops.Code(code).With("operation", operation).Wrap(sentinel)
}

// internal wraps a collaborator failure so errors.Is(err, ErrInternal) holds
// while the cause stays available to the logs.
func internal(code, operation string, cause error) error {
	return oops.Code(code).With("operation", operation).Wrap(fmt.Errorf("%w: %w", ErrInternal, cause))
}
