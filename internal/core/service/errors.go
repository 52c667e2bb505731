package service

import "errors"

var (
	// ErrInvalidAmount rejects create requests whose amount is missing,
	// zero or negative. Never retried.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrNotFound is returned when the referenced transaction does not exist.
	ErrNotFound = errors.New("transaction not found")
	// ErrVersionConflict is surfaced after the bounded optimistic-lock retry
	// is exhausted. The caller must refetch and resubmit.
	ErrVersionConflict = errors.New("transaction was modified by another process, please refresh and try again")
	// ErrTimeout is returned when an operation exceeds its per-operation bound.
	ErrTimeout = errors.New("operation timed out")
)
