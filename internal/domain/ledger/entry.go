package ledger

import (
	"time"

	"github.com/google/uuid"
)

// EntryType defines the side of a posting
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// Entry is one immutable posting against a ledger account
type Entry struct {
	ID              uuid.UUID `json:"id" bson:"id"`
	TransactionID   uuid.UUID `json:"transaction_id" bson:"transaction_id"`
	LedgerAccountID uuid.UUID `json:"ledger_account_id" bson:"ledger_account_id"`
	Type            EntryType `json:"entry_type" bson:"entry_type"`
	AmountMinor     int64     `json:"amount_minor" bson:"amount_minor"` // Always positive
	Currency        string    `json:"currency" bson:"currency"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

// NewEntryPair builds a balanced DEBIT/CREDIT pair for one transaction
func NewEntryPair(transactionID uuid.UUID, debit, credit *Account, amountMinor int64, currency string) []*Entry {
	now := time.Now().UTC()
	return []*Entry{
		{
			ID:              uuid.New(),
			TransactionID:   transactionID,
			LedgerAccountID: debit.ID,
			Type:            EntryTypeDebit,
			AmountMinor:     amountMinor,
			Currency:        currency,
			CreatedAt:       now,
		},
		{
			ID:              uuid.New(),
			TransactionID:   transactionID,
			LedgerAccountID: credit.ID,
			Type:            EntryTypeCredit,
			AmountMinor:     amountMinor,
			Currency:        currency,
			CreatedAt:       now,
		},
	}
}

// Totals holds debit and credit sums in minor units
type Totals struct {
	Debit  int64 `json:"debit_minor"`
	Credit int64 `json:"credit_minor"`
}

// Balanced reports whether debits equal credits
func (t Totals) Balanced() bool {
	return t.Debit == t.Credit
}

// Balance returns debits minus credits
func (t Totals) Balance() int64 {
	return t.Debit - t.Credit
}

// TotalsOf sums a set of entries in memory
func TotalsOf(entries []*Entry) Totals {
	var t Totals
	for _, e := range entries {
		switch e.Type {
		case EntryTypeDebit:
			t.Debit += e.AmountMinor
		case EntryTypeCredit:
			t.Credit += e.AmountMinor
		}
	}
	return t
}

// Window bounds a sum query to [From, To); zero values mean unbounded
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether ts falls in the window
func (w Window) Contains(ts time.Time) bool {
	if !w.From.IsZero() && ts.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !ts.Before(w.To) {
		return false
	}
	return true
}

// Anomaly describes a transaction whose postings break the double-entry rules
type Anomaly struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	EntryCount    int64     `json:"entry_count"`
	Totals        Totals    `json:"totals"`
}
