package repository

import (
	"context"
	"errors"

	"github.com/bankcore/transaction-service/internal/core/models"
)

var (
	// ErrNotFound is returned when no record exists under the given id.
	ErrNotFound = errors.New("transaction not found")
	// ErrVersionConflict is returned by Swap when the stored version no
	// longer matches the expected one.
	ErrVersionConflict = errors.New("transaction was modified by another process")
	// ErrTransientStorage marks backend hiccups that are worth retrying.
	ErrTransientStorage = errors.New("transient storage failure")
)

// TransactionRepository is the storage boundary of the service. Implementations
// must be safe for arbitrary concurrent use; callers receive and submit value
// copies, never shared references into the store.
type TransactionRepository interface {
	// NextID allocates a strictly increasing identifier. Ids are never reused.
	NextID(ctx context.Context) (int64, error)

	// Put inserts or overwrites the record under txn.ID.
	Put(ctx context.Context, txn models.Transaction) error

	// Get returns a snapshot of the record or ErrNotFound.
	Get(ctx context.Context, id int64) (*models.Transaction, error)

	// Swap replaces the record under id only when the stored version equals
	// expectedVersion. Exactly one of two racing swaps with the same
	// precondition succeeds; the loser gets ErrVersionConflict.
	Swap(ctx context.Context, id int64, expectedVersion int64, txn models.Transaction) error

	// Remove deletes the record. The bool reports whether anything existed.
	Remove(ctx context.Context, id int64) (bool, error)

	// Values returns a point-in-time snapshot of all records, in no
	// particular order.
	Values(ctx context.Context) ([]models.Transaction, error)
}
