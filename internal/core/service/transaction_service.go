package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankcore/transaction-service/internal/core/audit"
	"github.com/bankcore/transaction-service/internal/core/events"
	"github.com/bankcore/transaction-service/internal/core/logger"
	"github.com/bankcore/transaction-service/internal/core/models"
	"github.com/bankcore/transaction-service/internal/core/processor"
	"github.com/bankcore/transaction-service/internal/core/repository"
)

// Per-operation bounds. Expiry surfaces as ErrTimeout, never as a hang.
const (
	writeTimeout         = 30 * time.Second
	findByIDTimeout      = 10 * time.Second
	findByAccountTimeout = 20 * time.Second
	listTimeout          = 30 * time.Second
	statisticsTimeout    = 30 * time.Second
	deleteTimeout        = 15 * time.Second
)

const failedCreateMessage = "System temporarily unavailable, please try again later"

type TransactionService interface {
	Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	FindByID(ctx context.Context, id int64) (*models.Transaction, error)
	FindAll(ctx context.Context, page, size int) (*models.Page, error)
	FindByAccountID(ctx context.Context, accountID string, page, size int) (*models.Page, error)
	Update(ctx context.Context, id int64, patch models.TransactionUpdate) (*models.Transaction, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Statistics(ctx context.Context) (*models.Statistics, error)
}

type transactionService struct {
	repo      repository.TransactionRepository
	processor *processor.Processor
	publisher events.Publisher
	auditLog  *audit.Log
	metrics   *Metrics
	log       logger.Logger
}

func NewTransactionService(
	repo repository.TransactionRepository,
	proc *processor.Processor,
	publisher events.Publisher,
	auditLog *audit.Log,
	metrics *Metrics,
	log logger.Logger,
) TransactionService {
	return &transactionService{
		repo:      repo,
		processor: proc,
		publisher: publisher,
		auditLog:  auditLog,
		metrics:   metrics,
		log:       log,
	}
}

// Create validates the amount, lets the processor decide the status, stores
// the record and publishes the creation events. Transient storage failures
// are retried with exponential backoff; when the retries are exhausted the
// transaction is persisted best-effort in FAILED state and returned without
// an error, so the caller keeps a durable record of the attempt.
func (s *transactionService) Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	if txn.Amount.LessThanOrEqual(decimal.Zero) {
		s.metrics.Errors.Inc()
		return nil, ErrInvalidAmount
	}

	s.log.Info("Creating transaction",
		logger.StringField("account_id", txn.AccountID),
		logger.StringField("amount", txn.Amount.String()),
	)

	err := withTimeout(ctx, writeTimeout, func(ctx context.Context) error {
		id, err := s.repo.NextID(ctx)
		if err != nil {
			return err
		}

		now := time.Now()
		txn.ID = id
		txn.CreatedAt = now
		txn.UpdatedAt = now
		txn.Version = 0
		txn.Status = models.StatusPending

		if err := s.processor.Process(txn); err != nil {
			return err
		}

		retry := RetryPolicy{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			Multiplier:   2,
			Retryable: func(err error) bool {
				return errors.Is(err, repository.ErrTransientStorage)
			},
			OnRetry: func(attempt int, err error) {
				s.metrics.Retries.Inc()
				s.log.Warn("transient storage failure, retrying create",
					logger.IntField("attempt", attempt),
					logger.ErrorField("error", err),
				)
			},
		}
		return retry.Do(ctx, func(ctx context.Context) error {
			return s.repo.Put(ctx, *txn)
		})
	})

	switch {
	case err == nil:
	case errors.Is(err, repository.ErrTransientStorage):
		// Recovery path: keep a durable FAILED record instead of raising.
		s.metrics.Errors.Inc()
		txn.Status = models.StatusFailed
		txn.Message = failedCreateMessage
		txn.UpdatedAt = time.Now()
		if putErr := s.repo.Put(context.WithoutCancel(ctx), *txn); putErr != nil {
			s.log.Error("failed to persist FAILED transaction",
				logger.Int64Field("transaction_id", txn.ID),
				logger.ErrorField("error", putErr),
			)
		}
		s.recordAudit("create", txn.ID, audit.OutcomeFailure, err.Error())
		s.log.Error("create exhausted retries",
			logger.StringField("account_id", txn.AccountID),
			logger.ErrorField("error", err),
		)
		result := *txn
		return &result, nil
	default:
		s.metrics.Errors.Inc()
		s.recordAudit("create", txn.ID, audit.OutcomeFailure, err.Error())
		s.log.Error("Error creating transaction",
			logger.StringField("account_id", txn.AccountID),
			logger.ErrorField("error", err),
		)
		return nil, err
	}

	s.metrics.Processed.Inc()
	s.recordAudit("create", txn.ID, audit.OutcomeSuccess,
		fmt.Sprintf("account=%s type=%s amount=%s status=%s",
			txn.AccountID, txn.TransactionType, txn.Amount, txn.Status))
	s.publishCreated(*txn)

	s.log.Info("Transaction created successfully",
		logger.StringField("reference_number", txn.ReferenceNumber),
		logger.Int64Field("transaction_id", txn.ID),
	)

	result := *txn
	return &result, nil
}

func (s *transactionService) publishCreated(txn models.Transaction) {
	s.publisher.Publish(events.TransactionCreated{
		TransactionID:   txn.ID,
		AccountID:       txn.AccountID,
		TransactionType: txn.TransactionType,
		Amount:          txn.Amount,
		Currency:        txn.Currency,
		Description:     txn.Description,
		Status:          txn.Status,
		IdempotencyKey:  txn.IdempotencyKey,
		CreatedAt:       txn.CreatedAt,
	})

	if txn.TransactionType == models.TypeTransfer {
		s.publisher.Publish(events.TransferInitiated{
			TransactionID: txn.ID,
			SourceAccount: txn.AccountID,
			TargetAccount: txn.TargetAccount,
			Amount:        txn.Amount,
			Currency:      txn.Currency,
			Reference:     txn.ReferenceNumber,
			InitiatedAt:   txn.CreatedAt,
		})
	}
}

func (s *transactionService) FindByID(ctx context.Context, id int64) (*models.Transaction, error) {
	var txn *models.Transaction
	err := withTimeout(ctx, findByIDTimeout, func(ctx context.Context) error {
		found, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		txn = found
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return txn, nil
}

func (s *transactionService) FindAll(ctx context.Context, page, size int) (*models.Page, error) {
	return s.findPage(ctx, listTimeout, page, size, nil)
}

func (s *transactionService) FindByAccountID(ctx context.Context, accountID string, page, size int) (*models.Page, error) {
	return s.findPage(ctx, findByAccountTimeout, page, size, func(txn models.Transaction) bool {
		return txn.AccountID == accountID
	})
}

func (s *transactionService) findPage(ctx context.Context, timeout time.Duration, page, size int, filter func(models.Transaction) bool) (*models.Page, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 20
	}

	var result *models.Page
	err := withTimeout(ctx, timeout, func(ctx context.Context) error {
		snapshot, err := s.repo.Values(ctx)
		if err != nil {
			return err
		}

		matched := snapshot[:0:0]
		for _, txn := range snapshot {
			if filter == nil || filter(txn) {
				matched = append(matched, txn)
			}
		}

		sort.Slice(matched, func(i, j int) bool {
			if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].ID > matched[j].ID
			}
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})

		start := page * size
		if start > len(matched) {
			start = len(matched)
		}
		end := start + size
		if end > len(matched) {
			end = len(matched)
		}

		result = &models.Page{
			Content:       matched[start:end],
			TotalElements: int64(len(matched)),
			Size:          size,
			Number:        page,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Content == nil {
		result.Content = []models.Transaction{}
	}
	return result, nil
}

// Update applies the patch when the submitted version matches the stored one.
// Conflicts are retried a bounded number of times as a best-effort policy:
// the caller's version stays the same between attempts, so the retry only
// helps when the competing writer rolls back; otherwise the conflict
// surfaces and the caller must refetch.
func (s *transactionService) Update(ctx context.Context, id int64, patch models.TransactionUpdate) (*models.Transaction, error) {
	s.log.Info("Updating transaction", logger.Int64Field("transaction_id", id))

	var updated models.Transaction
	var previousStatus models.TransactionStatus

	retry := RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   1.5,
		Retryable: func(err error) bool {
			return errors.Is(err, repository.ErrVersionConflict)
		},
		OnRetry: func(attempt int, err error) {
			s.log.Warn("optimistic lock conflict, retrying update",
				logger.Int64Field("transaction_id", id),
				logger.IntField("attempt", attempt),
			)
		},
	}

	err := withTimeout(ctx, writeTimeout, func(ctx context.Context) error {
		return retry.Do(ctx, func(ctx context.Context) error {
			existing, err := s.repo.Get(ctx, id)
			if err != nil {
				return err
			}
			if existing.Version != patch.Version {
				s.metrics.Retries.Inc()
				return repository.ErrVersionConflict
			}

			previousStatus = existing.Status
			updated = *existing
			if patch.Amount != nil {
				updated.Amount = *patch.Amount
			}
			if patch.Description != nil {
				updated.Description = *patch.Description
			}
			if patch.Status != nil {
				updated.Status = *patch.Status
			}
			updated.Version = existing.Version + 1
			updated.UpdatedAt = time.Now()

			if err := s.repo.Swap(ctx, id, patch.Version, updated); err != nil {
				if errors.Is(err, repository.ErrVersionConflict) {
					s.metrics.Retries.Inc()
				}
				return err
			}
			return nil
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, repository.ErrVersionConflict):
			s.metrics.Errors.Inc()
			s.recordAudit("update", id, audit.OutcomeFailure, "optimistic lock conflict")
			return nil, ErrVersionConflict
		default:
			s.metrics.Errors.Inc()
			s.recordAudit("update", id, audit.OutcomeFailure, err.Error())
			return nil, err
		}
	}

	s.recordAudit("update", id, audit.OutcomeSuccess,
		fmt.Sprintf("version=%d status=%s", updated.Version, updated.Status))
	s.publishStatusChange(previousStatus, updated)

	s.log.Info("Transaction updated successfully",
		logger.Int64Field("transaction_id", id),
		logger.Int64Field("version", updated.Version),
	)

	result := updated
	return &result, nil
}

func (s *transactionService) publishStatusChange(previous models.TransactionStatus, txn models.Transaction) {
	if previous != models.StatusPendingApproval || previous == txn.Status {
		return
	}
	switch txn.Status {
	case models.StatusApproved:
		s.publisher.Publish(events.TransactionApproved{
			TransactionID: txn.ID,
			AccountID:     txn.AccountID,
			Amount:        txn.Amount,
			ApprovedAt:    txn.UpdatedAt,
		})
	case models.StatusRejected:
		s.publisher.Publish(events.TransactionRejected{
			TransactionID:   txn.ID,
			AccountID:       txn.AccountID,
			Amount:          txn.Amount,
			RejectedAt:      txn.UpdatedAt,
			RejectionReason: txn.Description,
		})
	}
}

// Delete removes the record unconditionally; there is no version check and
// no tombstone.
func (s *transactionService) Delete(ctx context.Context, id int64) (bool, error) {
	s.log.Info("Deleting transaction", logger.Int64Field("transaction_id", id))

	var removed bool
	err := withTimeout(ctx, deleteTimeout, func(ctx context.Context) error {
		ok, err := s.repo.Remove(ctx, id)
		removed = ok
		return err
	})
	if err != nil {
		s.metrics.Errors.Inc()
		s.recordAudit("delete", id, audit.OutcomeFailure, err.Error())
		return false, err
	}

	if removed {
		s.recordAudit("delete", id, audit.OutcomeSuccess, "")
		s.log.Info("Transaction deleted successfully", logger.Int64Field("transaction_id", id))
	} else {
		s.log.Warn("Transaction not found for deletion", logger.Int64Field("transaction_id", id))
	}
	return removed, nil
}

func (s *transactionService) Statistics(ctx context.Context) (*models.Statistics, error) {
	var stats *models.Statistics
	err := withTimeout(ctx, statisticsTimeout, func(ctx context.Context) error {
		snapshot, err := s.repo.Values(ctx)
		if err != nil {
			return err
		}

		total := decimal.Zero
		byType := make(map[models.TransactionType]int64)
		byStatus := make(map[models.TransactionStatus]int64)
		for _, txn := range snapshot {
			total = total.Add(txn.Amount)
			byType[txn.TransactionType]++
			byStatus[txn.Status]++
		}

		average := decimal.Zero
		if len(snapshot) > 0 {
			average = total.DivRound(decimal.NewFromInt(int64(len(snapshot))), 2)
		}

		stats = &models.Statistics{
			TotalTransactions: int64(len(snapshot)),
			TotalAmount:       total,
			ByType:            byType,
			ByStatus:          byStatus,
			AverageAmount:     average,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *transactionService) recordAudit(method string, id int64, outcome, details string) {
	s.auditLog.Record(audit.Entry{
		EventType: "DATA_MODIFICATION",
		Method:    "TransactionService." + method,
		Details:   fmt.Sprintf("transaction_id=%d %s", id, details),
		User:      "system",
		Outcome:   outcome,
	})
}
