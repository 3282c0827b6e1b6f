package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vcard-ledger/internal/currency"
	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/domain/transaction"
)

// LimitDecision is the outcome of the spending limit chain
type LimitDecision struct {
	Allowed  bool
	Reason   transaction.DeclineReason
	Strategy string
}

// Err returns a SpendingLimitExceeded for a failed decision and nil otherwise
func (d LimitDecision) Err() error {
	if d.Allowed {
		return nil
	}
	return &SpendingLimitExceeded{Strategy: d.Strategy, Reason: d.Reason}
}

// SpendingLimitExceeded names the strategy that rejected an authorization.
// The processor turns it into a decline, never into a failed call.
type SpendingLimitExceeded struct {
	Strategy string
	Reason   transaction.DeclineReason
}

func (e *SpendingLimitExceeded) Error() string {
	return fmt.Sprintf("spending limit exceeded: %s (%s)", e.Strategy, e.Reason)
}

// ErrInvalidRequest reports a malformed request field
type ErrInvalidRequest struct {
	Field  string
	Reason string
}

func (e ErrInvalidRequest) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches any ErrInvalidRequest when the target has no field
func (e ErrInvalidRequest) Is(target error) bool {
	t, ok := target.(ErrInvalidRequest)
	if !ok {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

// ErrUnsupportedSettlementEvent rejects a settlement that does not match its authorization
type ErrUnsupportedSettlementEvent struct {
	TransactionID uuid.UUID
	Reason        string
}

func (e ErrUnsupportedSettlementEvent) Error() string {
	return fmt.Sprintf("unsupported_event: settlement of %s rejected: %s", e.TransactionID, e.Reason)
}

// Is matches any ErrUnsupportedSettlementEvent
func (e ErrUnsupportedSettlementEvent) Is(target error) bool {
	_, ok := target.(ErrUnsupportedSettlementEvent)
	return ok
}

// ErrNotRefundable rejects a refund whose original is not an AUTHORIZED or SETTLED authorization
type ErrNotRefundable struct {
	TransactionID uuid.UUID
	Type          transaction.Type
	Status        transaction.Status
}

func (e ErrNotRefundable) Error() string {
	return fmt.Sprintf("transaction %s (%s/%s) cannot be refunded", e.TransactionID, e.Type, e.Status)
}

// Is matches any ErrNotRefundable
func (e ErrNotRefundable) Is(target error) bool {
	_, ok := target.(ErrNotRefundable)
	return ok
}

// ErrRefundExceedsOriginal rejects a refund that would return more than was authorized
type ErrRefundExceedsOriginal struct {
	TransactionID  uuid.UUID
	OriginalMinor  int64
	RefundedMinor  int64
	RequestedMinor int64
}

func (e ErrRefundExceedsOriginal) Error() string {
	return fmt.Sprintf("refund of %d exceeds remaining %d of transaction %s",
		e.RequestedMinor, e.OriginalMinor-e.RefundedMinor, e.TransactionID)
}

// Is matches any ErrRefundExceedsOriginal
func (e ErrRefundExceedsOriginal) Is(target error) bool {
	_, ok := target.(ErrRefundExceedsOriginal)
	return ok
}

// IsPermanent reports whether retrying err can never succeed. Transient errors
// (serialization conflicts, connectivity) return false.
func IsPermanent(err error) bool {
	var (
		illegal     transaction.ErrIllegalState
		transition  card.ErrInvalidStateTransition
		unsupported currency.ErrUnsupportedCurrency
		conflict    transaction.ErrStatusConflict
		duplicate   transaction.ErrDuplicateIdempotencyKey
	)
	switch {
	case errors.Is(err, ErrInvalidRequest{}),
		errors.Is(err, ErrUnsupportedSettlementEvent{}),
		errors.Is(err, ErrNotRefundable{}),
		errors.Is(err, ErrRefundExceedsOriginal{}),
		errors.Is(err, idempotency.ErrPayloadMismatch),
		errors.Is(err, idempotency.ErrMissingKey),
		errors.Is(err, transaction.ErrTransactionNotFound{}),
		errors.Is(err, transaction.ErrInvalidAmount),
		errors.Is(err, card.ErrCardNotFound{}),
		errors.Is(err, card.ErrCardClosed),
		errors.Is(err, ledger.ErrLedgerInvariantViolation{}),
		errors.As(err, &illegal),
		errors.As(err, &transition),
		errors.As(err, &unsupported),
		errors.As(err, &conflict),
		errors.As(err, &duplicate):
		return true
	}
	return false
}
