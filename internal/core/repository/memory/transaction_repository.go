package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bankcore/transaction-service/internal/core/logger"
	"github.com/bankcore/transaction-service/internal/core/models"
	"github.com/bankcore/transaction-service/internal/core/repository"
)

// memoryTransactionRepo keeps value copies in a plain map under an RWMutex.
// The id counter is atomic so concurrent creates never block each other on
// allocation.
type memoryTransactionRepo struct {
	mu     sync.RWMutex
	items  map[int64]models.Transaction
	nextID int64
	log    logger.Logger

	// faultFn, when set, is consulted before every Put. Tests use it to
	// inject transient storage failures.
	faultFn atomic.Value // func() error
}

func NewMemoryTransactionRepo(log logger.Logger) repository.TransactionRepository {
	return &memoryTransactionRepo{
		items: make(map[int64]models.Transaction),
		log:   log,
	}
}

// NewMemoryTransactionRepoWithFaults exposes the fault injector for tests of
// the retry path.
func NewMemoryTransactionRepoWithFaults(log logger.Logger, faultFn func() error) repository.TransactionRepository {
	repo := &memoryTransactionRepo{
		items: make(map[int64]models.Transaction),
		log:   log,
	}
	if faultFn != nil {
		repo.faultFn.Store(faultFn)
	}
	return repo
}

func (r *memoryTransactionRepo) NextID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return atomic.AddInt64(&r.nextID, 1), nil
}

func (r *memoryTransactionRepo) Put(ctx context.Context, txn models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if fn, ok := r.faultFn.Load().(func() error); ok && fn != nil {
		if err := fn(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.items[txn.ID] = txn
	r.mu.Unlock()
	return nil
}

func (r *memoryTransactionRepo) Get(ctx context.Context, id int64) (*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	txn, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return nil, repository.ErrNotFound
	}
	return &txn, nil
}

func (r *memoryTransactionRepo) Swap(ctx context.Context, id int64, expectedVersion int64, txn models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if existing.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	r.items[id] = txn
	return nil
}

func (r *memoryTransactionRepo) Remove(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	_, ok := r.items[id]
	if ok {
		delete(r.items, id)
	}
	r.mu.Unlock()
	return ok, nil
}

func (r *memoryTransactionRepo) Values(ctx context.Context) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	snapshot := make([]models.Transaction, 0, len(r.items))
	for _, txn := range r.items {
		snapshot = append(snapshot, txn)
	}
	r.mu.RUnlock()
	return snapshot, nil
}
