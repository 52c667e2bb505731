package processor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankcore/transaction-service/internal/core/logger"
	"github.com/bankcore/transaction-service/internal/core/models"
)

// approvalThreshold is the face-value amount above which a transaction needs
// a separate authorization step. Strictly greater-than: 10000.00 completes.
var approvalThreshold = decimal.NewFromInt(10000)

// Processor applies the status decision to a freshly created transaction.
type Processor struct {
	log logger.Logger
}

func NewProcessor(log logger.Logger) *Processor {
	return &Processor{log: log}
}

// Process routes the transaction by amount and stamps the processing time on
// auto-completion. On failure the record is forced to FAILED with the error
// text and the error still propagates to the caller.
func (p *Processor) Process(txn *models.Transaction) error {
	if err := p.process(txn); err != nil {
		txn.Status = models.StatusFailed
		txn.Message = err.Error()
		return err
	}
	return nil
}

func (p *Processor) process(txn *models.Transaction) error {
	if txn.Amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount must be positive, got %s", txn.Amount)
	}

	if txn.ReferenceNumber == "" {
		txn.ReferenceNumber = GenerateReferenceNumber()
	}

	if txn.Amount.GreaterThan(approvalThreshold) {
		txn.Status = models.StatusPendingApproval
		p.log.Info("Large transaction requires approval",
			logger.StringField("reference_number", txn.ReferenceNumber),
			logger.StringField("amount", txn.Amount.String()),
		)
		return nil
	}

	now := time.Now()
	txn.Status = models.StatusCompleted
	txn.ProcessedAt = &now
	p.log.Debug("Transaction processed successfully",
		logger.StringField("reference_number", txn.ReferenceNumber),
	)
	return nil
}

// GenerateReferenceNumber builds a unique reference of the form
// TXN-<unix-millis>-<random-suffix>.
func GenerateReferenceNumber() string {
	return fmt.Sprintf("TXN-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
