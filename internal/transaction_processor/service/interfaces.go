package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/domain/outbox"
	"github.com/vcard-ledger/internal/domain/transaction"
)

// ProcessingService executes authorizations, settlements and refunds. Every call is
// deduplicated by (idempotency key, scope) and answers with the response to replay.
type ProcessingService interface {
	ProcessAuthorization(ctx context.Context, request *AuthorizationRequest) (*idempotency.Response, error)
	ProcessSettlement(ctx context.Context, request *SettlementRequest) (*idempotency.Response, error)
	ProcessRefund(ctx context.Context, request *RefundRequest) (*idempotency.Response, error)
}

// UnitFunc is the business step run by the idempotency guard inside a serializable
// unit. It returns the status code and the value cached as the response body.
type UnitFunc func(ctx context.Context, tx pgx.Tx) (int, any, error)

// IdempotencyGuard runs fn at most once per (key, scope) and replays its response afterwards
type IdempotencyGuard interface {
	Execute(ctx context.Context, request idempotency.Request, fn UnitFunc) (*idempotency.Response, error)
}

// RequestValidator checks request shape before any storage access
type RequestValidator interface {
	ValidateAuthorization(request *AuthorizationRequest) error
	ValidateSettlement(request *SettlementRequest) error
	ValidateRefund(request *RefundRequest) error
}

// LimitInput is what a spending limit strategy sees
type LimitInput struct {
	Card        *card.Card
	AmountMinor int64
	MCC         string
	Now         time.Time
	// SumApproved returns the approved authorization total of the card in [from, to)
	SumApproved func(ctx context.Context, from, to time.Time) (int64, error)
}

// LimitEvaluator runs the spending limit strategies in order and stops at the first failure
type LimitEvaluator interface {
	Evaluate(ctx context.Context, tx pgx.Tx, c *card.Card, amountMinor int64, mcc string) (LimitDecision, error)
}

// AccountManager locks cards and resolves the ledger accounts a posting needs
type AccountManager interface {
	LockCard(ctx context.Context, tx pgx.Tx, cardID uuid.UUID) (*card.Card, error)
	ResolveAccounts(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, merchantID, currency string) (cardHolder, merchant *ledger.Account, err error)
}

// LedgerEngine writes balanced entry pairs and verifies them against the store
type LedgerEngine interface {
	PostAuthorization(ctx context.Context, tx pgx.Tx, txn *transaction.Transaction, cardHolder, merchant *ledger.Account) ([]*ledger.Entry, error)
	PostRefund(ctx context.Context, tx pgx.Tx, refund *transaction.Transaction, cardHolder, merchant *ledger.Account) ([]*ledger.Entry, error)
}

// OutboxManager records outbound domain events in the caller's unit of work
type OutboxManager interface {
	Record(ctx context.Context, tx pgx.Tx, eventType outbox.EventType, aggregateID uuid.UUID, meta RequestMeta, payload any) error
}

// FailureRecorder persists declined authorizations
type FailureRecorder interface {
	RecordDecline(ctx context.Context, tx pgx.Tx, request *AuthorizationRequest, reason transaction.DeclineReason) (*transaction.Transaction, error)
}
