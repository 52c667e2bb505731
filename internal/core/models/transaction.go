package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType defines the kind of banking operation.
type TransactionType string

const (
	TypeDeposit    TransactionType = "DEPOSIT"
	TypeWithdrawal TransactionType = "WITHDRAWAL"
	TypeTransfer   TransactionType = "TRANSFER"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeTransfer:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending         TransactionStatus = "PENDING"
	StatusCompleted       TransactionStatus = "COMPLETED"
	StatusPendingApproval TransactionStatus = "PENDING_APPROVAL"
	StatusFailed          TransactionStatus = "FAILED"
	StatusApproved        TransactionStatus = "APPROVED"
	StatusRejected        TransactionStatus = "REJECTED"
	StatusCancelled       TransactionStatus = "CANCELLED"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusPendingApproval,
		StatusFailed, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Transaction is the canonical record owned by the repository. Callers always
// operate on copies, never on the stored value.
type Transaction struct {
	ID              int64             `json:"id" db:"id"`
	AccountID       string            `json:"accountId" db:"account_id"`
	TransactionType TransactionType   `json:"transactionType" db:"transaction_type"`
	Amount          decimal.Decimal   `json:"amount" db:"amount"`
	Currency        string            `json:"currency" db:"currency"`
	Description     string            `json:"description" db:"description"`
	TargetAccount   string            `json:"targetAccount,omitempty" db:"target_account"`
	ReferenceNumber string            `json:"referenceNumber" db:"reference_number"`
	Status          TransactionStatus `json:"status" db:"status"`
	Message         string            `json:"message,omitempty" db:"message"`
	CreatedAt       time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time         `json:"updatedAt" db:"updated_at"`
	ProcessedAt     *time.Time        `json:"processedAt,omitempty" db:"processed_at"`
	IdempotencyKey  string            `json:"idempotencyKey,omitempty" db:"idempotency_key"`
	Version         int64             `json:"version" db:"version"`
}

// TransactionUpdate carries the mutable fields of an update request. Version
// is the version the caller observed; the update is rejected when it no
// longer matches the stored record.
type TransactionUpdate struct {
	Version     int64              `json:"version"`
	Amount      *decimal.Decimal   `json:"amount,omitempty"`
	Description *string            `json:"description,omitempty"`
	Status      *TransactionStatus `json:"status,omitempty"`
}
