package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankcore/transaction-service/internal/core/models"
)

// Event is a marker for the banking domain events dispatched to downstream
// handlers. Event values are immutable snapshots; handlers must not assume
// they see the current store state.
type Event interface {
	EventName() string
}

type TransactionCreated struct {
	TransactionID   int64
	AccountID       string
	TransactionType models.TransactionType
	Amount          decimal.Decimal
	Currency        string
	Description     string
	Status          models.TransactionStatus
	IdempotencyKey  string
	CreatedAt       time.Time
}

func (TransactionCreated) EventName() string { return "transaction.created" }

type TransactionApproved struct {
	TransactionID int64
	AccountID     string
	Amount        decimal.Decimal
	ApprovedAt    time.Time
}

func (TransactionApproved) EventName() string { return "transaction.approved" }

type TransactionRejected struct {
	TransactionID   int64
	AccountID       string
	Amount          decimal.Decimal
	RejectedAt      time.Time
	RejectionReason string
	ErrorCode       string
}

func (TransactionRejected) EventName() string { return "transaction.rejected" }

type TransferInitiated struct {
	TransactionID int64
	SourceAccount string
	TargetAccount string
	Amount        decimal.Decimal
	Currency      string
	Reference     string
	InitiatedAt   time.Time
}

func (TransferInitiated) EventName() string { return "transfer.initiated" }

type FraudSuspected struct {
	TransactionID   int64
	AccountID       string
	Amount          decimal.Decimal
	SuspicionReason string
	RiskScore       float64
	DetectedAt      time.Time
	DetectionSource string
}

func (FraudSuspected) EventName() string { return "fraud.suspected" }

type ComplianceCheckRequired struct {
	TransactionID   int64
	AccountID       string
	Amount          decimal.Decimal
	TransactionType models.TransactionType
	RegulationType  string // AML, KYC, FATCA
	TriggeredAt     time.Time
}

func (ComplianceCheckRequired) EventName() string { return "compliance.check_required" }

type AccountBalanceUpdated struct {
	AccountID         string
	PreviousBalance   decimal.Decimal
	NewBalance        decimal.Decimal
	TransactionAmount decimal.Decimal
	TransactionID     int64
	UpdatedAt         time.Time
}

func (AccountBalanceUpdated) EventName() string { return "account.balance_updated" }
