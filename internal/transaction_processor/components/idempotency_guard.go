package components

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/platform/metrics"
	"github.com/vcard-ledger/internal/platform/persistence"
	"github.com/vcard-ledger/internal/transaction_processor/service"
)

// IdempotencyGuardImpl implements the IdempotencyGuard interface on top of the
// idempotency record repository.
type IdempotencyGuardImpl struct {
	records idempotency.Repository
	runner  persistence.TxRunner
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewIdempotencyGuard creates a guard whose records live for ttl
func NewIdempotencyGuard(records idempotency.Repository, runner persistence.TxRunner, ttl time.Duration, logger *slog.Logger) *IdempotencyGuardImpl {
	return &IdempotencyGuardImpl{
		records: records,
		runner:  runner,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

var _ service.IdempotencyGuard = (*IdempotencyGuardImpl)(nil)

// Execute replays a completed (key, scope) or runs fn inside a serializable unit that
// also reserves and completes the record. Failed executions roll back, leaving no record.
func (g *IdempotencyGuardImpl) Execute(ctx context.Context, request idempotency.Request, fn service.UnitFunc) (*idempotency.Response, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	logger := g.logger.With("idempotency_key", request.Key, "scope", request.Scope)

	existing, err := g.records.Get(ctx, request.Key, request.Scope)
	switch {
	case err == nil:
		if resp, err := g.replay(existing, request, logger); resp != nil || err != nil {
			return resp, err
		}
		// Reserved but not completed yet: the unit below waits for the owner
	case !errors.Is(err, idempotency.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to look up idempotency record: %w", err)
	}

	var resp *idempotency.Response
	err = g.runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		resp = nil
		records := g.records.WithTx(tx)

		now := g.now()
		reserved, err := records.Reserve(ctx, &idempotency.Record{
			Key:         request.Key,
			Scope:       request.Scope,
			PayloadHash: request.PayloadHash,
			CreatedAt:   now,
			ExpiresAt:   now.Add(g.ttl),
		})
		if err != nil {
			return err
		}

		if !reserved {
			existing, err := records.Get(ctx, request.Key, request.Scope)
			if err != nil {
				if errors.Is(err, idempotency.ErrRecordNotFound) {
					return persistence.MarkRetryable(err)
				}
				return err
			}
			replayed, err := g.replay(existing, request, logger)
			if err != nil {
				return err
			}
			if replayed == nil {
				return persistence.MarkRetryable(fmt.Errorf("idempotency key %s is still in flight", request.Key))
			}
			resp = replayed
			return nil
		}

		status, body, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
		if err := records.Complete(ctx, request.Key, request.Scope, status, raw); err != nil {
			return err
		}
		resp = &idempotency.Response{StatusCode: status, Body: raw}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// replay returns the cached response of a completed record, ErrPayloadMismatch for a
// different payload, or nil for a record still in flight.
func (g *IdempotencyGuardImpl) replay(record *idempotency.Record, request idempotency.Request, logger *slog.Logger) (*idempotency.Response, error) {
	if record.PayloadHash != request.PayloadHash {
		logger.Warn("Idempotency key reused with a different payload")
		return nil, idempotency.ErrPayloadMismatch
	}
	if !record.Completed() {
		return nil, nil
	}

	metrics.IdempotentReplays.WithLabelValues(scopeKind(request.Scope)).Inc()
	logger.Info("Replaying cached response", "status", record.ResponseStatus)
	return &idempotency.Response{
		StatusCode: record.ResponseStatus,
		Body:       record.ResponseBody,
		Replayed:   true,
	}, nil
}

func scopeKind(scope string) string {
	if strings.Contains(scope, "/webhooks/") {
		return "webhook"
	}
	return "client"
}
