package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrNoPosition       = errors.New("no open position")
	ErrContextDone      = errors.New("context cancelled")
)

// ExecutionError wraps the underlying cause of a failed order submission.
// State is never mutated when one is returned.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// PersistenceError wraps a failure to durably record state that has already
// advanced (a real fill was applied). It signals a reconciliation gap between
// the ledger and the durable record, not a failed order.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed (%s): %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }
