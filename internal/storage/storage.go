// Package storage defines the persistence contract for expenses. Backends
// live in the mongo, sqlite and memory subpackages.
package storage

import (
	"context"
	"errors"
	"fmt"

	"expenses/internal/core"
)

// ExpenseRepository is implemented by every backend.
//
// Get, Update and Delete return core.ErrNotFound when no expense has the
// given id, and a *core.InvalidIdentifierError for malformed ids. List is
// ordered by date, newest first. Each of Create, Update and Delete issues a
// single write.
type ExpenseRepository interface {
	List(ctx context.Context) ([]core.Expense, error)
	Get(ctx context.Context, id string) (core.Expense, error)
	Create(ctx context.Context, e core.Expense) (core.Expense, error)
	Update(ctx context.Context, id string, e core.Expense) (core.Expense, error)
	Delete(ctx context.Context, id string) error
}

// ErrNotConnected is returned when an operation is attempted before the
// store connection is established.
var ErrNotConnected = errors.New("database not connected")

// StoreError wraps any failure of the store itself, as opposed to a
// missing record or a bad request.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s expense: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreError reports whether err carries a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
