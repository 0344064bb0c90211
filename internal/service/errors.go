package service

import (
	"errors"
	"fmt"
)

// ErrNoTickets rejects an order submitted without tickets.
var ErrNoTickets = errors.New("at least one ticket is required")

// ValidationError reports a rejected input field.  Field uses the request
// path of the offending value, e.g. "tickets[1].seat".
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error { return &ValidationError{Field: field, Err: err} }
