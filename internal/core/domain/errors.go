package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthorized        = errors.New("not authorized")
	ErrTypeMismatch         = errors.New("login type not authorized")
	ErrForbidden            = errors.New("access forbidden")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidRole          = errors.New("invalid user type")
	ErrSuperadminNotAllowed = errors.New("user cannot be superadmin")
)

// ErrNotAllowListed rejects a stored superadmin missing from the deployment
// allow-list. It matches ErrNotAuthorized under errors.Is.
var ErrNotAllowListed = fmt.Errorf("%w: not an allow-listed superadmin", ErrNotAuthorized)

// ValidationError reports malformed client input. Input carries the offending
// value so it can be echoed back for diagnostics.
type ValidationError struct {
	Field  string
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, truncate(e.Input, 50), e.Reason)
}

// StoreError wraps a failure of the backing store.
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError wraps err with the store operation that produced it.
// A nil err yields nil.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
