// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository can be rebound to a pgx.Tx so a serializable unit of work
// spans cards, transactions, ledger entries, idempotency records and the outbox.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/platform/persistence"
)

// CardRepository implements the card.Repository interface for PostgreSQL
type CardRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewCardRepository creates a new PostgreSQL card repository
func NewCardRepository(logger *slog.Logger, db *persistence.PostgresDB) card.Repository {
	return &CardRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to the given transaction
func (r *CardRepository) WithTx(tx pgx.Tx) card.Repository {
	return &CardRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const cardColumns = `id, user_id, status, currency, single_transaction_limit, daily_limit, monthly_limit,
		mcc_blocklist, closed_at, created_at, updated_at`

// Create stores a new card
func (r *CardRepository) Create(ctx context.Context, c *card.Card) error {
	query := `
		INSERT INTO cards (id, user_id, status, currency, single_transaction_limit, daily_limit, monthly_limit,
			mcc_blocklist, closed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		c.ID,
		c.UserID,
		c.Status,
		c.Currency,
		c.SingleTransactionLimit,
		c.DailyLimit,
		c.MonthlyLimit,
		c.MCCBlocklist,
		c.ClosedAt,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create card", "card_id", c.ID.String(), "error", err)
		return fmt.Errorf("failed to create card: %w", err)
	}

	return nil
}

// GetByID retrieves a card without locking it
func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (*card.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	return r.get(ctx, query, id)
}

// GetByIDForUpdate retrieves a card and locks its row until the surrounding transaction ends
func (r *CardRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*card.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 FOR UPDATE`
	return r.get(ctx, query, id)
}

func (r *CardRepository) get(ctx context.Context, query string, id uuid.UUID) (*card.Card, error) {
	var c card.Card
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.UserID,
		&c.Status,
		&c.Currency,
		&c.SingleTransactionLimit,
		&c.DailyLimit,
		&c.MonthlyLimit,
		&c.MCCBlocklist,
		&c.ClosedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, card.ErrCardNotFound{CardID: id}
		}
		r.logger.Error("Failed to get card", "card_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	if c.MCCBlocklist == nil {
		c.MCCBlocklist = []string{}
	}

	return &c, nil
}

// Update persists status, limits and blocklist. Rows already CLOSED are never touched.
func (r *CardRepository) Update(ctx context.Context, c *card.Card) error {
	query := `
		UPDATE cards
		SET status = $1, single_transaction_limit = $2, daily_limit = $3, monthly_limit = $4,
			mcc_blocklist = $5, closed_at = $6, updated_at = $7
		WHERE id = $8 AND status <> 'CLOSED'
	`

	result, err := r.querier.Exec(ctx, query,
		c.Status,
		c.SingleTransactionLimit,
		c.DailyLimit,
		c.MonthlyLimit,
		c.MCCBlocklist,
		c.ClosedAt,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update card", "card_id", c.ID.String(), "error", err)
		return fmt.Errorf("failed to update card: %w", err)
	}

	if result.RowsAffected() == 0 {
		return card.ErrCardNotFound{CardID: c.ID}
	}

	return nil
}
