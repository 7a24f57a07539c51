package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned for any failed login, whether the
	// identity is unknown or the password is wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrNotFound indicates no record matched a lookup.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ConflictError reports that an identity is already registered.
type ConflictError struct {
	Identity string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%q already exists", e.Identity)
}

// StorageError wraps an I/O failure of the ledger or attachment storage.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

type AuthReason string

const (
	AuthExpired AuthReason = "expired"
	AuthInvalid AuthReason = "invalid"
)

// AuthError reports a bearer token that failed verification.
type AuthError struct {
	Reason AuthReason
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("token %s", e.Reason)
}
