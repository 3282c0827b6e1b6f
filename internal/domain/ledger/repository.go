package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists ledger accounts and entries. Entries are append-only:
// no update or delete operation exists.
type Repository interface {
	CreateAccount(ctx context.Context, account *Account) error
	// GetOrCreateAccount inserts the account if no (type, owner, currency) row exists and returns the stored one
	GetOrCreateAccount(ctx context.Context, accountType AccountType, ownerID string, currency string) (*Account, error)
	GetAccountByOwner(ctx context.Context, accountType AccountType, ownerID string, currency string) (*Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error)
	InsertEntries(ctx context.Context, entries []*Entry) error
	SumByTransaction(ctx context.Context, transactionID uuid.UUID) (Totals, error)
	SumByAccount(ctx context.Context, accountID uuid.UUID, window Window) (Totals, error)
	ListEntriesByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*Entry, error)
	// FindUnbalancedTransactions returns transactions whose debits differ from credits
	FindUnbalancedTransactions(ctx context.Context, limit int) ([]Anomaly, error)
	// FindEntryCountAnomalies returns transactions whose posting count is not exactly two
	FindEntryCountAnomalies(ctx context.Context, limit int) ([]Anomaly, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrLedgerAccountNotFound indicates missing ledger account
type ErrLedgerAccountNotFound struct {
	AccountID uuid.UUID
	Owner     string
}

func (e ErrLedgerAccountNotFound) Error() string {
	if e.Owner != "" {
		return "ledger account not found for owner: " + e.Owner
	}
	return "ledger account not found: " + e.AccountID.String()
}

// Is implements the errors.Is interface for ErrLedgerAccountNotFound
func (e ErrLedgerAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrLedgerAccountNotFound)
	if !ok {
		return false
	}
	if t.AccountID == uuid.Nil && t.Owner == "" {
		return true
	}
	return e.AccountID == t.AccountID && e.Owner == t.Owner
}

// ErrLedgerInvariantViolation indicates debits and credits of a transaction do not match
type ErrLedgerInvariantViolation struct {
	TransactionID uuid.UUID
	Totals        Totals
	Detail        string
}

func (e ErrLedgerInvariantViolation) Error() string {
	msg := fmt.Sprintf("ledger invariant violated for transaction %s: debit=%d credit=%d",
		e.TransactionID, e.Totals.Debit, e.Totals.Credit)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Is implements the errors.Is interface for ErrLedgerInvariantViolation
func (e ErrLedgerInvariantViolation) Is(target error) bool {
	t, ok := target.(ErrLedgerInvariantViolation)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || t.TransactionID == e.TransactionID
}
