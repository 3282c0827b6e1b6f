package ledger

import (
	"time"

	"github.com/google/uuid"
)

// AccountType defines the kind of ledger account
type AccountType string

const (
	AccountTypeCardHolder AccountType = "CARD_HOLDER"
	AccountTypeMerchant   AccountType = "MERCHANT"
	AccountTypeSystem     AccountType = "SYSTEM"
)

// Account is a bucket against which entries are posted. All account types
// behave as assets: balance = debits - credits.
type Account struct {
	ID            uuid.UUID   `json:"id"`
	Type          AccountType `json:"account_type"`
	OwnerEntityID *string     `json:"owner_entity_id,omitempty"` // nil for SYSTEM
	Currency      string      `json:"currency"`
	CreatedAt     time.Time   `json:"created_at"`
}

// NewAccount creates an account owned by ownerID; an empty ownerID leaves the owner unset
func NewAccount(accountType AccountType, ownerID string, currency string) *Account {
	acc := &Account{
		ID:        uuid.New(),
		Type:      accountType,
		Currency:  currency,
		CreatedAt: time.Now().UTC(),
	}
	if ownerID != "" {
		acc.OwnerEntityID = &ownerID
	}
	return acc
}

// Owner returns the owner entity id or an empty string
func (a *Account) Owner() string {
	if a.OwnerEntityID == nil {
		return ""
	}
	return *a.OwnerEntityID
}
