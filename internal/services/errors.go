package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateUser is returned when registering or importing an email
	// that already has a record.
	ErrDuplicateUser = errors.New("email already registered")
	// ErrInvalidFormat is returned for import data missing required fields.
	ErrInvalidFormat = errors.New("invalid data format")
	ErrUserNotFound  = errors.New("user not found")
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	// ErrRateLimited is returned by non-waiting requests when no upstream
	// request slot is free.
	ErrRateLimited = errors.New("market data request skipped: rate limit reached")
)

// TransportError is a network failure or non-success HTTP response from the
// market data API.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("market data %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("market data %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SchemaError is a market data response that does not match the endpoint's
// expected shape.
type SchemaError struct {
	Endpoint string
	Detail   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("market data %s: unexpected response: %s", e.Endpoint, e.Detail)
}

// PasswordPolicyError lists every rule a password failed.
type PasswordPolicyError struct {
	Problems []string
}

func (e *PasswordPolicyError) Error() string {
	return "password does not meet requirements: " + strings.Join(e.Problems, "; ")
}
