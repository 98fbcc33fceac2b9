package domain

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel errors for auth and profile operations.
var (
	// ErrBadRequest indicates a required request field is missing.
	// HTTP Status: 400 Bad Request
	ErrBadRequest = errors.New("bad request")

	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	// HTTP Status: 401 Unauthorized
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountDisabled indicates the identity exists but is not active.
	// HTTP Status: 401 Unauthorized
	ErrAccountDisabled = errors.New("account disabled")

	// ErrUnauthenticated indicates a missing, invalid or expired access token.
	// HTTP Status: 401 Unauthorized
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidToken indicates a refresh token that cannot be renewed.
	// HTTP Status: 401 Unauthorized
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotFound is the parent of every "record does not exist" error.
	// HTTP Status: 404 Not Found
	ErrNotFound = errors.New("not found")

	// ErrIdentityNotFound indicates no identity matches the lookup.
	ErrIdentityNotFound = notFound("identity not found")

	// ErrProfileNotFound indicates the identity has no profile row.
	ErrProfileNotFound = notFound("profile not found")

	// ErrIdentityExists indicates the username is already taken.
	// HTTP Status: 409 Conflict
	ErrIdentityExists = errors.New("identity already exists")

	// ErrInternal marks unexpected store or runtime failures.
	// HTTP Status: 500 Internal Server Error
	ErrInternal = errors.New("internal error")
)

type notFoundError struct{ msg string }

func notFound(msg string) error { return &notFoundError{msg: msg} }

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError carries per-field messages. Keys are wire field names.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

// Add appends a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// HasErrors reports whether any field failed.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns e when it holds errors and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e.Fields[field], "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
