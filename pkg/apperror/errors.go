package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrBadRequest     = errors.New("bad request")
	ErrInternal       = errors.New("internal server error")
	ErrInvalidInput   = errors.New("invalid input")
	ErrValidation     = errors.New("malformed action descriptor")
	ErrDuplicateEvent = errors.New("duplicate correlation id")
	ErrStorage        = errors.New("storage failure")
	ErrConflict       = errors.New("concurrent update conflict")
)

// AppError is a custom error type that can hold an HTTP status code
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ConflictError signals a stale read on a per-user aggregate. It carries the
// competing row so callers re-read and retry instead of unwinding.
type ConflictError struct {
	UserID    string
	Competing any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent update conflict for user %s", e.UserID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// CriteriaError marks a single catalog definition whose criteria could not
// be parsed or evaluated. Evaluation of the remaining catalog continues.
type CriteriaError struct {
	DefinitionID string
	Err          error
}

func (e *CriteriaError) Error() string {
	return fmt.Sprintf("criteria for definition %s: %v", e.DefinitionID, e.Err)
}

func (e *CriteriaError) Unwrap() error { return e.Err }

// MapErrorToStatus maps common errors to HTTP status codes
func MapErrorToStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrConflict) {
		return http.StatusConflict
	}
	// Replays are acknowledged, never surfaced as failures to the caller.
	if errors.Is(err, ErrDuplicateEvent) {
		return http.StatusOK
	}
	// Default to internal server error
	return http.StatusInternalServerError
}
