package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vcard-ledger/internal/domain/transaction"
	"github.com/vcard-ledger/internal/platform/persistence"
)

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to the given transaction
func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const transactionColumns = `id, card_id, original_transaction_id, type, status, amount_minor, currency,
		merchant_id, merchant_name, merchant_category_code, authorization_code, decline_reason,
		idempotency_key, created_at, updated_at`

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var t transaction.Transaction
	err := row.Scan(
		&t.ID,
		&t.CardID,
		&t.OriginalTransactionID,
		&t.Type,
		&t.Status,
		&t.AmountMinor,
		&t.Currency,
		&t.MerchantID,
		&t.MerchantName,
		&t.MerchantCategoryCode,
		&t.AuthorizationCode,
		&t.DeclineReason,
		&t.IdempotencyKey,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a transaction after checking its (type, status) pair is legal
func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	if err := transaction.ValidateState(t.Type, t.Status); err != nil {
		return err
	}

	query := `
		INSERT INTO transactions (id, card_id, original_transaction_id, type, status, amount_minor, currency,
			merchant_id, merchant_name, merchant_category_code, authorization_code, decline_reason,
			idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.querier.Exec(ctx, query,
		t.ID,
		t.CardID,
		t.OriginalTransactionID,
		t.Type,
		t.Status,
		t.AmountMinor,
		t.Currency,
		t.MerchantID,
		t.MerchantName,
		t.MerchantCategoryCode,
		t.AuthorizationCode,
		t.DeclineReason,
		t.IdempotencyKey,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return transaction.ErrDuplicateIdempotencyKey{Key: t.IdempotencyKey}
		}
		r.logger.Error("Failed to create transaction",
			"transaction_id", t.ID.String(),
			"card_id", t.CardID.String(),
			"error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.getByID(ctx, query, id)
}

// GetByIDForUpdate retrieves a transaction and locks its row
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return r.getByID(ctx, query, id)
}

func (r *TransactionRepository) getByID(ctx context.Context, query string, id uuid.UUID) (*transaction.Transaction, error) {
	t, err := scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get transaction", "transaction_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// GetByAuthorizationCodeForUpdate retrieves the authorization carrying code and locks its row
func (r *TransactionRepository) GetByAuthorizationCodeForUpdate(ctx context.Context, code string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE authorization_code = $1 FOR UPDATE`

	t, err := scanTransaction(r.querier.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{AuthorizationCode: code}
		}
		r.logger.Error("Failed to get transaction by authorization code", "error", err)
		return nil, fmt.Errorf("failed to get transaction by authorization code: %w", err)
	}
	return t, nil
}

// UpdateStatus is a compare-and-set on status; the (type, new status) pair must be legal
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to transaction.Status) error {
	query := `
		UPDATE transactions
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING type
	`

	var txType transaction.Type
	err := r.querier.QueryRow(ctx, query, to, time.Now().UTC(), id, from).Scan(&txType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return transaction.ErrStatusConflict{TransactionID: id, Expected: from}
		}
		r.logger.Error("Failed to update transaction status",
			"transaction_id", id.String(),
			"from", string(from),
			"to", string(to),
			"error", err)
		return fmt.Errorf("failed to update transaction status: %w", err)
	}

	return transaction.ValidateState(txType, to)
}

// SumApprovedAmount sums approved authorization amounts of a card in [from, to)
func (r *TransactionRepository) SumApprovedAmount(ctx context.Context, cardID uuid.UUID, from, to time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount_minor), 0)::BIGINT
		FROM transactions
		WHERE card_id = $1
			AND type = 'AUTHORIZATION'
			AND status IN ('AUTHORIZED', 'SETTLED')
			AND created_at >= $2 AND created_at < $3
	`

	var sum int64
	if err := r.querier.QueryRow(ctx, query, cardID, from, to).Scan(&sum); err != nil {
		r.logger.Error("Failed to sum approved amount", "card_id", cardID.String(), "error", err)
		return 0, fmt.Errorf("failed to sum approved amount: %w", err)
	}
	return sum, nil
}

// SumRefundedAmount sums every refund linked to the original transaction
func (r *TransactionRepository) SumRefundedAmount(ctx context.Context, originalID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount_minor), 0)::BIGINT
		FROM transactions
		WHERE original_transaction_id = $1 AND type = 'REFUND'
	`

	var sum int64
	if err := r.querier.QueryRow(ctx, query, originalID).Scan(&sum); err != nil {
		r.logger.Error("Failed to sum refunded amount", "original_transaction_id", originalID.String(), "error", err)
		return 0, fmt.Errorf("failed to sum refunded amount: %w", err)
	}
	return sum, nil
}

// ListByCard returns a page of a card's transactions, newest first
func (r *TransactionRepository) ListByCard(ctx context.Context, cardID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE card_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	rows, err := r.querier.Query(ctx, query, cardID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list card transactions", "card_id", cardID.String(), "error", err)
		return nil, fmt.Errorf("failed to list card transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]*transaction.Transaction, 0, limit)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan transaction", "error", err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over transactions", "error", err)
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return txns, nil
}

// CountByCard counts all transactions of a card
func (r *TransactionRepository) CountByCard(ctx context.Context, cardID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE card_id = $1`

	var count int64
	if err := r.querier.QueryRow(ctx, query, cardID).Scan(&count); err != nil {
		r.logger.Error("Failed to count card transactions", "card_id", cardID.String(), "error", err)
		return 0, fmt.Errorf("failed to count card transactions: %w", err)
	}
	return count, nil
}
