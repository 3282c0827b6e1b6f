package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/platform/persistence"
)

// IdempotencyRepository implements the idempotency.Repository interface for PostgreSQL
type IdempotencyRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewIdempotencyRepository creates a new PostgreSQL idempotency repository
func NewIdempotencyRepository(logger *slog.Logger, db *persistence.PostgresDB) idempotency.Repository {
	return &IdempotencyRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to the given transaction
func (r *IdempotencyRepository) WithTx(tx pgx.Tx) idempotency.Repository {
	return &IdempotencyRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Get returns the unexpired record for (key, scope)
func (r *IdempotencyRepository) Get(ctx context.Context, key, scope string) (*idempotency.Record, error) {
	query := `
		SELECT key, scope, payload_hash, response_status, response_body, created_at, expires_at
		FROM idempotency_records
		WHERE key = $1 AND scope = $2 AND expires_at > $3
	`

	var rec idempotency.Record
	err := r.querier.QueryRow(ctx, query, key, scope, time.Now().UTC()).Scan(
		&rec.Key,
		&rec.Scope,
		&rec.PayloadHash,
		&rec.ResponseStatus,
		&rec.ResponseBody,
		&rec.CreatedAt,
		&rec.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, idempotency.ErrRecordNotFound
		}
		r.logger.Error("Failed to get idempotency record", "scope", scope, "error", err)
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}

	return &rec, nil
}

// Reserve claims (key, scope). Concurrent reservations serialize on the unique index:
// the loser waits for the winner to finish and then inserts nothing. An expired record
// that has not been swept yet is taken over.
func (r *IdempotencyRepository) Reserve(ctx context.Context, rec *idempotency.Record) (bool, error) {
	query := `
		INSERT INTO idempotency_records (key, scope, payload_hash, response_status, response_body, created_at, expires_at)
		VALUES ($1, $2, $3, 0, NULL, $4, $5)
		ON CONFLICT (key, scope) DO UPDATE
		SET payload_hash = EXCLUDED.payload_hash,
			response_status = 0,
			response_body = NULL,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_records.expires_at <= EXCLUDED.created_at
	`

	result, err := r.querier.Exec(ctx, query, rec.Key, rec.Scope, rec.PayloadHash, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		r.logger.Error("Failed to reserve idempotency key", "scope", rec.Scope, "error", err)
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// Complete stores the response produced for a reserved (key, scope)
func (r *IdempotencyRepository) Complete(ctx context.Context, key, scope string, status int, body []byte) error {
	query := `
		UPDATE idempotency_records
		SET response_status = $1, response_body = $2
		WHERE key = $3 AND scope = $4
	`

	result, err := r.querier.Exec(ctx, query, status, body, key, scope)
	if err != nil {
		r.logger.Error("Failed to store idempotent response", "scope", scope, "error", err)
		return fmt.Errorf("failed to store idempotent response: %w", err)
	}

	if result.RowsAffected() == 0 {
		return idempotency.ErrRecordNotFound
	}

	return nil
}

// DeleteExpired purges records whose TTL elapsed before now
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM idempotency_records WHERE expires_at <= $1`

	result, err := r.querier.Exec(ctx, query, now)
	if err != nil {
		r.logger.Error("Failed to delete expired idempotency records", "error", err)
		return 0, fmt.Errorf("failed to delete expired idempotency records: %w", err)
	}

	return result.RowsAffected(), nil
}
