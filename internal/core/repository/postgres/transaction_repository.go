package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bankcore/transaction-service/internal/core/logger"
	"github.com/bankcore/transaction-service/internal/core/models"
	"github.com/bankcore/transaction-service/internal/core/repository"
)

const schema = `
CREATE SEQUENCE IF NOT EXISTS transaction_ids;

CREATE TABLE IF NOT EXISTS transactions (
    id               BIGINT PRIMARY KEY,
    account_id       VARCHAR(20) NOT NULL,
    transaction_type VARCHAR(20) NOT NULL,
    amount           NUMERIC(12,2) NOT NULL,
    currency         VARCHAR(3) NOT NULL,
    description      VARCHAR(255) NOT NULL DEFAULT '',
    target_account   VARCHAR(20) NOT NULL DEFAULT '',
    reference_number VARCHAR(50) NOT NULL UNIQUE,
    status           VARCHAR(20) NOT NULL,
    message          TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL,
    processed_at     TIMESTAMPTZ,
    idempotency_key  VARCHAR(36) NOT NULL DEFAULT '',
    version          BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions (account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions (created_at);
`

type postgresTransactionRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresTransactionRepo(db *sqlx.DB, log logger.Logger) repository.TransactionRepository {
	return &postgresTransactionRepo{
		db:  db,
		log: log,
	}
}

// EnsureSchema creates the transactions table and id sequence when missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *postgresTransactionRepo) NextID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT nextval('transaction_ids')`)
	if err != nil {
		return 0, classify(fmt.Errorf("allocate id: %w", err))
	}
	return id, nil
}

func (r *postgresTransactionRepo) Put(ctx context.Context, txn models.Transaction) error {
	const query = `
        INSERT INTO transactions (
            id, account_id, transaction_type, amount, currency, description,
            target_account, reference_number, status, message,
            created_at, updated_at, processed_at, idempotency_key, version
        ) VALUES (
            :id, :account_id, :transaction_type, :amount, :currency, :description,
            :target_account, :reference_number, :status, :message,
            :created_at, :updated_at, :processed_at, :idempotency_key, :version
        )
        ON CONFLICT (id) DO UPDATE SET
            account_id = EXCLUDED.account_id,
            transaction_type = EXCLUDED.transaction_type,
            amount = EXCLUDED.amount,
            currency = EXCLUDED.currency,
            description = EXCLUDED.description,
            target_account = EXCLUDED.target_account,
            reference_number = EXCLUDED.reference_number,
            status = EXCLUDED.status,
            message = EXCLUDED.message,
            updated_at = EXCLUDED.updated_at,
            processed_at = EXCLUDED.processed_at,
            idempotency_key = EXCLUDED.idempotency_key,
            version = EXCLUDED.version`

	if _, err := r.db.NamedExecContext(ctx, query, txn); err != nil {
		return classify(fmt.Errorf("put transaction: %w", err))
	}
	return nil
}

func (r *postgresTransactionRepo) Get(ctx context.Context, id int64) (*models.Transaction, error) {
	var txn models.Transaction
	const query = `
        SELECT id, account_id, transaction_type, amount, currency, description,
               target_account, reference_number, status, message,
               created_at, updated_at, processed_at, idempotency_key, version
        FROM transactions WHERE id = $1`

	err := r.db.GetContext(ctx, &txn, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, classify(fmt.Errorf("get transaction: %w", err))
	}
	return &txn, nil
}

func (r *postgresTransactionRepo) Swap(ctx context.Context, id int64, expectedVersion int64, txn models.Transaction) error {
	const query = `
        UPDATE transactions SET
            amount = $3, description = $4, status = $5, message = $6,
            updated_at = $7, processed_at = $8, version = $9
        WHERE id = $1 AND version = $2`

	res, err := r.db.ExecContext(ctx, query,
		id, expectedVersion,
		txn.Amount, txn.Description, txn.Status, txn.Message,
		txn.UpdatedAt, txn.ProcessedAt, txn.Version,
	)
	if err != nil {
		return classify(fmt.Errorf("swap transaction: %w", err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("swap transaction rows: %w", err)
	}
	if rows == 0 {
		// Distinguish a stale version from a missing row.
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)`, id); err != nil {
			return classify(fmt.Errorf("swap transaction recheck: %w", err))
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrVersionConflict
	}
	return nil
}

func (r *postgresTransactionRepo) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return false, classify(fmt.Errorf("remove transaction: %w", err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove transaction rows: %w", err)
	}
	return rows > 0, nil
}

func (r *postgresTransactionRepo) Values(ctx context.Context) ([]models.Transaction, error) {
	var txns []models.Transaction
	const query = `
        SELECT id, account_id, transaction_type, amount, currency, description,
               target_account, reference_number, status, message,
               created_at, updated_at, processed_at, idempotency_key, version
        FROM transactions`

	if err := r.db.SelectContext(ctx, &txns, query); err != nil {
		return nil, classify(fmt.Errorf("list transactions: %w", err))
	}
	return txns, nil
}

// classify tags retryable backend failures with ErrTransientStorage so the
// service retry policy can filter on them.
// 40001 - serialization failure, 40P01 - deadlock, class 08 - connection errors.
func classify(err error) error {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		code := string(pgErr.Code)
		if code == "40001" || code == "40P01" || (len(code) >= 2 && code[:2] == "08") {
			return fmt.Errorf("%w: %v", repository.ErrTransientStorage, err)
		}
	}
	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", repository.ErrTransientStorage, err)
	}
	return err
}
