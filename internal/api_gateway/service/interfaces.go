package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/domain/shared"
	"github.com/vcard-ledger/internal/domain/transaction"
	processing "github.com/vcard-ledger/internal/transaction_processor/service"
)

// CreateCardInput carries the fields of a new card
type CreateCardInput struct {
	UserID       uuid.UUID
	Currency     string
	Limits       card.Limits
	MCCBlocklist []string
}

// CardBalance is the ledger position of a card's CARD_HOLDER account
type CardBalance struct {
	CardID       uuid.UUID
	AccountID    uuid.UUID
	Currency     string
	Totals       ledger.Totals
	BalanceMinor int64
}

// CardService defines the interface for card lifecycle operations
type CardService interface {
	// CreateCard stores a PENDING card together with its CARD_HOLDER ledger account
	CreateCard(ctx context.Context, input CreateCardInput, meta processing.RequestMeta) (*card.Card, error)

	// GetCard retrieves a card by its ID
	// Returns ErrCardNotFound if the card doesn't exist
	GetCard(ctx context.Context, id uuid.UUID) (*card.Card, error)

	// TransitionStatus moves the card along the lifecycle graph
	// Returns ErrInvalidStateTransition for an edge outside the graph
	TransitionStatus(ctx context.Context, id uuid.UUID, requested card.Status, meta processing.RequestMeta) (*card.Card, error)

	// UpdateLimits reassigns limits, and the MCC blocklist when non-nil
	UpdateLimits(ctx context.Context, id uuid.UUID, limits card.Limits, mccBlocklist []string, meta processing.RequestMeta) (*card.Card, error)

	// GetBalance sums the entries posted to the card's CARD_HOLDER account
	GetBalance(ctx context.Context, id uuid.UUID) (*CardBalance, error)
}

// TransactionService defines the read side of transactions and their postings
type TransactionService interface {
	// GetTransaction retrieves a transaction by its ID
	// Returns ErrTransactionNotFound if the transaction doesn't exist
	GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)

	// ListByCard retrieves a page of a card's transactions, newest first, with the total count
	ListByCard(ctx context.Context, cardID uuid.UUID, page, perPage int) ([]*transaction.Transaction, int64, error)

	// ListEntries retrieves the ledger entries posted for a transaction
	ListEntries(ctx context.Context, transactionID uuid.UUID) ([]*ledger.Entry, error)
}

// EventDispatcher hands a verified processor webhook to the processing side
type EventDispatcher interface {
	Dispatch(ctx context.Context, event *shared.ProcessorEvent) (*idempotency.Response, error)
}
