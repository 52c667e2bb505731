package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankcore/transaction-service/internal/core/logger"
	"github.com/bankcore/transaction-service/internal/core/models"
	"github.com/bankcore/transaction-service/internal/core/processor"
	"github.com/bankcore/transaction-service/internal/core/repository"
)

var sampleTypes = []models.TransactionType{
	models.TypeDeposit,
	models.TypeWithdrawal,
	models.TypeTransfer,
}

// SeedSampleData loads a handful of completed transactions so a fresh demo
// deployment has something to list.
func SeedSampleData(ctx context.Context, repo repository.TransactionRepository, log logger.Logger) error {
	log.Info("Initializing sample transaction data")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < 20; i++ {
		id, err := repo.NextID(ctx)
		if err != nil {
			return fmt.Errorf("seed sample data: %w", err)
		}

		created := time.Now().AddDate(0, 0, -i)
		processed := created
		amount := decimal.NewFromFloat(rng.Float64()*5000 + 10).Round(2)

		txn := models.Transaction{
			ID:              id,
			AccountID:       fmt.Sprintf("ACC%010d", i%5),
			TransactionType: sampleTypes[rng.Intn(len(sampleTypes))],
			Amount:          amount,
			Currency:        models.CurrencyUSD,
			Description:     fmt.Sprintf("Sample transaction %d", i),
			ReferenceNumber: processor.GenerateReferenceNumber(),
			Status:          models.StatusCompleted,
			CreatedAt:       created,
			UpdatedAt:       created,
			ProcessedAt:     &processed,
			Version:         0,
		}
		if txn.TransactionType == models.TypeTransfer {
			txn.TargetAccount = fmt.Sprintf("ACC%010d", (i+1)%5)
		}

		if err := repo.Put(ctx, txn); err != nil {
			return fmt.Errorf("seed sample data: %w", err)
		}
	}

	log.Info("Initialized sample transactions", logger.IntField("count", 20))
	return nil
}
