package card

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vcard-ledger/internal/currency"
)

// Common errors
var (
	ErrCardClosed    = errors.New("card is closed and can no longer be modified")
	ErrInvalidLimit  = errors.New("limits must be non-negative")
	ErrInvalidMCC    = errors.New("merchant category code must be 4 characters")
	ErrMissingUserID = errors.New("user id is required")
)

// Limits groups the three spending limits of a card, all in minor units
type Limits struct {
	SingleTransaction int64 `json:"single_transaction_limit"`
	Daily             int64 `json:"daily_limit"`
	Monthly           int64 `json:"monthly_limit"`
}

func (l Limits) validate() error {
	if l.SingleTransaction < 0 || l.Daily < 0 || l.Monthly < 0 {
		return ErrInvalidLimit
	}
	return nil
}

// Card represents a virtual payment card
type Card struct {
	ID                     uuid.UUID  `json:"id"`
	UserID                 uuid.UUID  `json:"user_id"`
	Status                 Status     `json:"status"`
	Currency               string     `json:"currency"`
	SingleTransactionLimit int64      `json:"single_transaction_limit"` // Stored in minor units
	DailyLimit             int64      `json:"daily_limit"`
	MonthlyLimit           int64      `json:"monthly_limit"`
	MCCBlocklist           []string   `json:"mcc_blocklist"`
	ClosedAt               *time.Time `json:"closed_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// NewCard creates a PENDING card
func NewCard(userID uuid.UUID, currencyCode string, limits Limits, mccBlocklist []string) (*Card, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUserID
	}
	code, err := currency.Normalize(currencyCode)
	if err != nil {
		return nil, err
	}
	if err := limits.validate(); err != nil {
		return nil, err
	}
	blocklist, err := normalizeBlocklist(mccBlocklist)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Card{
		ID:                     uuid.New(),
		UserID:                 userID,
		Status:                 StatusPending,
		Currency:               code,
		SingleTransactionLimit: limits.SingleTransaction,
		DailyLimit:             limits.Daily,
		MonthlyLimit:           limits.Monthly,
		MCCBlocklist:           blocklist,
		CreatedAt:              now,
		UpdatedAt:              now,
	}, nil
}

func normalizeBlocklist(codes []string) ([]string, error) {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if len(code) != 4 {
			return nil, ErrInvalidMCC
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out, nil
}

// Limits returns the card's current limits
func (c *Card) Limits() Limits {
	return Limits{
		SingleTransaction: c.SingleTransactionLimit,
		Daily:             c.DailyLimit,
		Monthly:           c.MonthlyLimit,
	}
}

// Blocks reports whether the merchant category code is on the card's blocklist
func (c *Card) Blocks(mcc string) bool {
	for _, blocked := range c.MCCBlocklist {
		if blocked == mcc {
			return true
		}
	}
	return false
}

// CanChangeLimits reports whether limits and blocklist may still be reassigned
func (c *Card) CanChangeLimits() bool {
	return c.Status != StatusClosed
}

// ApplyTransition moves the card to requested and returns the previous status
func (c *Card) ApplyTransition(requested Status) (Status, error) {
	from := c.Status
	to, err := Transition(from, requested)
	if err != nil {
		return from, err
	}

	now := time.Now().UTC()
	c.Status = to
	c.UpdatedAt = now
	if to == StatusClosed {
		c.ClosedAt = &now
	}
	return from, nil
}

// UpdateLimits reassigns limits and, when non-nil, the MCC blocklist
func (c *Card) UpdateLimits(limits Limits, mccBlocklist []string) error {
	if !c.CanChangeLimits() {
		return ErrCardClosed
	}
	if err := limits.validate(); err != nil {
		return err
	}
	if mccBlocklist != nil {
		blocklist, err := normalizeBlocklist(mccBlocklist)
		if err != nil {
			return err
		}
		c.MCCBlocklist = blocklist
	}

	c.SingleTransactionLimit = limits.SingleTransaction
	c.DailyLimit = limits.Daily
	c.MonthlyLimit = limits.Monthly
	c.UpdatedAt = time.Now().UTC()
	return nil
}
