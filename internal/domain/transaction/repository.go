package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages transaction persistence
type Repository interface {
	Create(ctx context.Context, txn *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByAuthorizationCodeForUpdate(ctx context.Context, code string) (*Transaction, error)
	// UpdateStatus moves id from one status to another and fails if the row is no longer in from
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	// SumApprovedAmount sums AUTHORIZATION amounts in AUTHORIZED or SETTLED created in [from, to)
	SumApprovedAmount(ctx context.Context, cardID uuid.UUID, from, to time.Time) (int64, error)
	SumRefundedAmount(ctx context.Context, originalID uuid.UUID) (int64, error)
	ListByCard(ctx context.Context, cardID uuid.UUID, limit, offset int) ([]*Transaction, error)
	CountByCard(ctx context.Context, cardID uuid.UUID) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrTransactionNotFound indicates missing transaction
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
	// AuthorizationCode is set when the lookup was by code
	AuthorizationCode string
}

func (e ErrTransactionNotFound) Error() string {
	if e.AuthorizationCode != "" {
		return "transaction not found for authorization code: " + e.AuthorizationCode
	}
	return "transaction not found: " + e.TransactionID.String()
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil && t.AuthorizationCode == "" {
		return true
	}
	return e.TransactionID == t.TransactionID && e.AuthorizationCode == t.AuthorizationCode
}

// ErrStatusConflict indicates the row was not in the expected status when updated
type ErrStatusConflict struct {
	TransactionID uuid.UUID
	Expected      Status
}

func (e ErrStatusConflict) Error() string {
	return fmt.Sprintf("transaction %s is no longer %s", e.TransactionID, e.Expected)
}

// ErrDuplicateIdempotencyKey indicates the unique transaction idempotency key is already used
type ErrDuplicateIdempotencyKey struct {
	Key string
}

func (e ErrDuplicateIdempotencyKey) Error() string {
	return "duplicate transaction idempotency key: " + e.Key
}
