package storage

import "errors"

// Ledger storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrImmutable is returned on any attempt to change an existing
	// record. The ledger is append-only; rows are never updated.
	ErrImmutable = errors.New("ledger records are append-only")
)
