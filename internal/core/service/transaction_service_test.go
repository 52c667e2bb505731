package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankcore/transaction-service/internal/core/audit"
	"github.com/bankcore/transaction-service/internal/core/events"
	"github.com/bankcore/transaction-service/internal/core/logger"
	"github.com/bankcore/transaction-service/internal/core/models"
	"github.com/bankcore/transaction-service/internal/core/processor"
	"github.com/bankcore/transaction-service/internal/core/repository"
	"github.com/bankcore/transaction-service/internal/core/repository/memory"
	"github.com/bankcore/transaction-service/internal/core/service"
)

// capturePublisher records published events synchronously for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(e events.Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *capturePublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Event, len(p.events))
	copy(out, p.events)
	return out
}

type testEnv struct {
	svc       service.TransactionService
	repo      repository.TransactionRepository
	publisher *capturePublisher
	auditLog  *audit.Log
	metrics   *service.Metrics
}

func newTestEnv(t *testing.T, repo repository.TransactionRepository) *testEnv {
	t.Helper()
	log := logger.NewNopLogger()
	if repo == nil {
		repo = memory.NewMemoryTransactionRepo(log)
	}
	publisher := &capturePublisher{}
	auditLog := audit.NewLog(log)
	metrics := service.NewMetrics(prometheus.NewRegistry())
	svc := service.NewTransactionService(repo, processor.NewProcessor(log), publisher, auditLog, metrics, log)
	return &testEnv{svc: svc, repo: repo, publisher: publisher, auditLog: auditLog, metrics: metrics}
}

func newDeposit(amount string) *models.Transaction {
	return &models.Transaction{
		AccountID:       "ACC0000000001",
		TransactionType: models.TypeDeposit,
		Amount:          decimal.RequireFromString(amount),
		Currency:        models.CurrencyUSD,
		Description:     "test deposit",
	}
}

func TestCreateAssignsIdentityAndCompletes(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, newDeposit("100.50"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), created.ID)
	assert.True(t, created.Amount.Equal(decimal.RequireFromString("100.50")))
	assert.Equal(t, int64(0), created.Version)
	assert.Equal(t, models.StatusCompleted, created.Status)
	assert.NotNil(t, created.ProcessedAt)
	assert.NotEmpty(t, created.ReferenceNumber)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.Processed))
}

func TestCreateRejectsNonPositiveAmounts(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, newDeposit("0"))
	assert.ErrorIs(t, err, service.ErrInvalidAmount)

	_, err = env.svc.Create(ctx, newDeposit("-5"))
	assert.ErrorIs(t, err, service.ErrInvalidAmount)

	created, err := env.svc.Create(ctx, newDeposit("0.01"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, created.Status)

	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.Errors))
}

func TestCreateApprovalThresholdBoundary(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	atThreshold, err := env.svc.Create(ctx, newDeposit("10000.00"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, atThreshold.Status)

	aboveThreshold, err := env.svc.Create(ctx, newDeposit("10000.01"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingApproval, aboveThreshold.Status)
	assert.Nil(t, aboveThreshold.ProcessedAt)
}

func TestCreatePublishesCreationEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, newDeposit("50.00"))
	require.NoError(t, err)

	published := env.publisher.all()
	require.Len(t, published, 1)
	createdEvent, ok := published[0].(events.TransactionCreated)
	require.True(t, ok)
	assert.Equal(t, created.ID, createdEvent.TransactionID)
	assert.Equal(t, models.StatusCompleted, createdEvent.Status)

	transfer := newDeposit("75.00")
	transfer.TransactionType = models.TypeTransfer
	transfer.TargetAccount = "ACC0000000002"
	createdTransfer, err := env.svc.Create(ctx, transfer)
	require.NoError(t, err)

	published = env.publisher.all()
	require.Len(t, published, 3)
	initiated, ok := published[2].(events.TransferInitiated)
	require.True(t, ok)
	assert.Equal(t, createdTransfer.ID, initiated.TransactionID)
	assert.Equal(t, "ACC0000000002", initiated.TargetAccount)
}

func TestCreateRetriesTransientStorageFailures(t *testing.T) {
	var calls int32
	repo := memory.NewMemoryTransactionRepoWithFaults(logger.NewNopLogger(), func() error {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return fmt.Errorf("%w: simulated outage", repository.ErrTransientStorage)
		}
		return nil
	})
	env := newTestEnv(t, repo)

	created, err := env.svc.Create(context.Background(), newDeposit("10.00"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, created.Status)
	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.Retries))

	stored, err := env.svc.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
}

func TestCreateExhaustedRetriesReturnsFailedRecord(t *testing.T) {
	var calls int32
	repo := memory.NewMemoryTransactionRepoWithFaults(logger.NewNopLogger(), func() error {
		// The three create attempts fail; the recovery write goes through.
		if atomic.AddInt32(&calls, 1) <= 3 {
			return fmt.Errorf("%w: simulated outage", repository.ErrTransientStorage)
		}
		return nil
	})
	env := newTestEnv(t, repo)

	created, err := env.svc.Create(context.Background(), newDeposit("10.00"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, created.Status)
	assert.Equal(t, "System temporarily unavailable, please try again later", created.Message)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.Errors))

	// The FAILED attempt is durable.
	stored, err := env.svc.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
}

func TestFindByIDIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, newDeposit("42.00"))
	require.NoError(t, err)

	first, err := env.svc.FindByID(ctx, created.ID)
	require.NoError(t, err)
	second, err := env.svc.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFindByIDMissing(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.FindByID(context.Background(), 12345)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestUpdateBumpsVersionAndStaleVersionConflicts(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, newDeposit("100.00"))
	require.NoError(t, err)
	require.Equal(t, int64(0), created.Version)

	newAmount := decimal.RequireFromString("200.00")
	updated, err := env.svc.Update(ctx, created.ID, models.TransactionUpdate{
		Version: 0,
		Amount:  &newAmount,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)
	assert.True(t, updated.Amount.Equal(newAmount))
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt) || updated.UpdatedAt.Equal(created.UpdatedAt))

	// The stale version is retried a bounded number of times and still fails.
	_, err = env.svc.Update(ctx, created.ID, models.TransactionUpdate{
		Version: 0,
		Amount:  &newAmount,
	})
	assert.ErrorIs(t, err, service.ErrVersionConflict)
	assert.GreaterOrEqual(t, testutil.ToFloat64(env.metrics.Retries), float64(3))
}

func TestUpdateMissingTransaction(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.Update(context.Background(), 777, models.TransactionUpdate{Version: 0})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestUpdateApprovalPublishesEvent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, newDeposit("20000.00"))
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingApproval, created.Status)

	approved := models.StatusApproved
	updated, err := env.svc.Update(ctx, created.ID, models.TransactionUpdate{
		Version: 0,
		Status:  &approved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)

	published := env.publisher.all()
	last := published[len(published)-1]
	approvedEvent, ok := last.(events.TransactionApproved)
	require.True(t, ok)
	assert.Equal(t, created.ID, approvedEvent.TransactionID)
}

func TestUpdateRejectionPublishesEvent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, newDeposit("20000.00"))
	require.NoError(t, err)

	rejected := models.StatusRejected
	_, err = env.svc.Update(ctx, created.ID, models.TransactionUpdate{
		Version: 0,
		Status:  &rejected,
	})
	require.NoError(t, err)

	published := env.publisher.all()
	last := published[len(published)-1]
	_, ok := last.(events.TransactionRejected)
	assert.True(t, ok)
}

func TestFindAllPagination(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := env.svc.Create(ctx, newDeposit("10.00"))
		require.NoError(t, err)
	}

	page0, err := env.svc.FindAll(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, page0.Content, 10)
	assert.Equal(t, int64(25), page0.TotalElements)
	assert.Equal(t, 0, page0.Number)
	assert.Equal(t, 10, page0.Size)

	page2, err := env.svc.FindAll(ctx, 2, 10)
	require.NoError(t, err)
	assert.Len(t, page2.Content, 5)
	assert.Equal(t, int64(25), page2.TotalElements)

	beyond, err := env.svc.FindAll(ctx, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond.Content)
	assert.Equal(t, int64(25), beyond.TotalElements)
}

func TestFindAllOrdersByCreatedAtDescending(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := env.svc.Create(ctx, newDeposit("10.00"))
		require.NoError(t, err)
	}

	page, err := env.svc.FindAll(ctx, 0, 5)
	require.NoError(t, err)
	require.Len(t, page.Content, 5)
	for i := 1; i < len(page.Content); i++ {
		prev, cur := page.Content[i-1], page.Content[i]
		assert.False(t, prev.CreatedAt.Before(cur.CreatedAt))
	}
}

func TestFindByAccountIDFilters(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.svc.Create(ctx, newDeposit("10.00"))
		require.NoError(t, err)
	}
	other := newDeposit("10.00")
	other.AccountID = "ACC0000000099"
	_, err := env.svc.Create(ctx, other)
	require.NoError(t, err)

	page, err := env.svc.FindByAccountID(ctx, "ACC0000000001", 0, 10)
	require.NoError(t, err)
	assert.Len(t, page.Content, 3)
	assert.Equal(t, int64(3), page.TotalElements)
	for _, txn := range page.Content {
		assert.Equal(t, "ACC0000000001", txn.AccountID)
	}
}

func TestDeleteIsIdempotentlyFalseOnSecondCall(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, newDeposit("10.00"))
	require.NoError(t, err)

	removed, err := env.svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = env.svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = env.svc.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestStatisticsExactDecimalSums(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	empty, err := env.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.TotalTransactions)
	assert.True(t, empty.AverageAmount.IsZero())

	amounts := []string{"0.10", "0.20", "0.30"}
	for _, a := range amounts {
		_, err := env.svc.Create(ctx, newDeposit(a))
		require.NoError(t, err)
	}
	withdrawal := newDeposit("100.00")
	withdrawal.TransactionType = models.TypeWithdrawal
	_, err = env.svc.Create(ctx, withdrawal)
	require.NoError(t, err)

	stats, err := env.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalTransactions)
	assert.True(t, stats.TotalAmount.Equal(decimal.RequireFromString("100.60")),
		"got %s", stats.TotalAmount)
	assert.True(t, stats.AverageAmount.Equal(decimal.RequireFromString("25.15")),
		"got %s", stats.AverageAmount)
	assert.Equal(t, int64(3), stats.ByType[models.TypeDeposit])
	assert.Equal(t, int64(1), stats.ByType[models.TypeWithdrawal])
	assert.Equal(t, int64(4), stats.ByStatus[models.StatusCompleted])
}

func TestConcurrentCreatesProduceDistinctRecords(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	results := make(chan *models.Transaction, goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			created, err := env.svc.Create(ctx, newDeposit("10.00"))
			if err == nil {
				results <- created
			}
		}()
	}
	wg.Wait()
	close(results)

	ids := make(map[int64]bool)
	refs := make(map[string]bool)
	for txn := range results {
		assert.False(t, ids[txn.ID], "duplicate id %d", txn.ID)
		assert.False(t, refs[txn.ReferenceNumber], "duplicate reference %s", txn.ReferenceNumber)
		ids[txn.ID] = true
		refs[txn.ReferenceNumber] = true
	}
	require.Len(t, ids, goroutines)

	page, err := env.svc.FindAll(ctx, 0, goroutines+10)
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines), page.TotalElements)
}

func TestIdempotencyKeyIsStoredButNotDeduplicated(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	key := "123e4567-e89b-12d3-a456-426614174000"
	first := newDeposit("10.00")
	first.IdempotencyKey = key
	second := newDeposit("10.00")
	second.IdempotencyKey = key

	a, err := env.svc.Create(ctx, first)
	require.NoError(t, err)
	b, err := env.svc.Create(ctx, second)
	require.NoError(t, err)

	// Duplicate keys are accepted as distinct records.
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, key, a.IdempotencyKey)
	assert.Equal(t, key, b.IdempotencyKey)
}

func TestSeedSampleData(t *testing.T) {
	log := logger.NewNopLogger()
	repo := memory.NewMemoryTransactionRepo(log)

	require.NoError(t, service.SeedSampleData(context.Background(), repo, log))

	values, err := repo.Values(context.Background())
	require.NoError(t, err)
	assert.Len(t, values, 20)
	for _, txn := range values {
		assert.Equal(t, models.StatusCompleted, txn.Status)
		assert.True(t, txn.Amount.GreaterThan(decimal.Zero))
	}
}
