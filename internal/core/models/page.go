package models

import "github.com/shopspring/decimal"

// Page is one slice of a paginated listing. Number is zero-based.
type Page struct {
	Content       []Transaction `json:"content"`
	TotalElements int64         `json:"totalElements"`
	Size          int           `json:"size"`
	Number        int           `json:"number"`
}

// Statistics is an aggregate over the full store snapshot.
type Statistics struct {
	TotalTransactions int64                       `json:"totalTransactions"`
	TotalAmount       decimal.Decimal             `json:"totalAmount"`
	ByType            map[TransactionType]int64   `json:"byType"`
	ByStatus          map[TransactionStatus]int64 `json:"byStatus"`
	AverageAmount     decimal.Decimal             `json:"averageAmount"`
}
