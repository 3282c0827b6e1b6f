package transaction

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type defines the kind of card transaction
type Type string

const (
	TypeAuthorization Type = "AUTHORIZATION"
	TypeRefund        Type = "REFUND"
)

// Status defines transaction states
type Status string

const (
	StatusAuthorized Status = "AUTHORIZED"
	StatusSettled    Status = "SETTLED"
	StatusDeclined   Status = "DECLINED"
	StatusReversed   Status = "REVERSED"
	StatusRefunded   Status = "REFUNDED"
)

// DeclineReason names why an authorization was declined
type DeclineReason string

const (
	DeclineReasonCardNotActive       DeclineReason = "card_not_active"
	DeclineReasonMCCBlocked          DeclineReason = "mcc_blocked"
	DeclineReasonPerTransactionLimit DeclineReason = "per_transaction_limit"
	DeclineReasonDailyLimit          DeclineReason = "daily_limit"
	DeclineReasonMonthlyLimit        DeclineReason = "monthly_limit"
	DeclineReasonCurrencyMismatch    DeclineReason = "currency_mismatch"
)

var ErrInvalidAmount = errors.New("amount must be positive")

type typeStatus struct {
	t Type
	s Status
}

// legalStates maps every accepted (type, status) pair to whether reaching it
// at creation posts ledger entries.
var legalStates = map[typeStatus]bool{
	{TypeAuthorization, StatusAuthorized}: true,
	{TypeAuthorization, StatusSettled}:    false,
	{TypeAuthorization, StatusDeclined}:   false,
	{TypeAuthorization, StatusReversed}:   false,
	{TypeRefund, StatusRefunded}:          true,
}

// ValidateState rejects (type, status) pairs outside the legal table
func ValidateState(t Type, s Status) error {
	if _, ok := legalStates[typeStatus{t, s}]; !ok {
		return ErrIllegalState{Type: t, Status: s}
	}
	return nil
}

// PostsLedgerEntries reports whether a transaction created in this state carries a ledger pair
func PostsLedgerEntries(t Type, s Status) bool {
	return legalStates[typeStatus{t, s}]
}

// Transaction represents a single card authorization or refund
type Transaction struct {
	ID                    uuid.UUID      `json:"id"`
	CardID                uuid.UUID      `json:"card_id"`
	OriginalTransactionID *uuid.UUID     `json:"original_transaction_id,omitempty"`
	Type                  Type           `json:"type"`
	Status                Status         `json:"status"`
	AmountMinor           int64          `json:"amount_minor"`
	Currency              string         `json:"currency"`
	MerchantID            string         `json:"merchant_id"`
	MerchantName          string         `json:"merchant_name"`
	MerchantCategoryCode  string         `json:"merchant_category_code"`
	AuthorizationCode     *string        `json:"authorization_code,omitempty"`
	DeclineReason         *DeclineReason `json:"decline_reason,omitempty"`
	IdempotencyKey        string         `json:"idempotency_key"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// Merchant identifies the acceptor of an authorization
type Merchant struct {
	ID           string
	Name         string
	CategoryCode string
}

// NewAuthorization creates an AUTHORIZED transaction with a fresh authorization code
func NewAuthorization(cardID uuid.UUID, amountMinor int64, currency string, merchant Merchant, idempotencyKey string) (*Transaction, error) {
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	code, err := NewAuthorizationCode()
	if err != nil {
		return nil, err
	}
	txn := newTransaction(cardID, TypeAuthorization, StatusAuthorized, amountMinor, currency, merchant, idempotencyKey)
	txn.AuthorizationCode = &code
	return txn, nil
}

// NewDecline creates a DECLINED authorization carrying its reason
func NewDecline(cardID uuid.UUID, amountMinor int64, currency string, merchant Merchant, idempotencyKey string, reason DeclineReason) *Transaction {
	txn := newTransaction(cardID, TypeAuthorization, StatusDeclined, amountMinor, currency, merchant, idempotencyKey)
	txn.DeclineReason = &reason
	return txn
}

// NewRefund creates a REFUNDED transaction linked to original
func NewRefund(original *Transaction, amountMinor int64, idempotencyKey string) (*Transaction, error) {
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	merchant := Merchant{ID: original.MerchantID, Name: original.MerchantName, CategoryCode: original.MerchantCategoryCode}
	txn := newTransaction(original.CardID, TypeRefund, StatusRefunded, amountMinor, original.Currency, merchant, idempotencyKey)
	originalID := original.ID
	txn.OriginalTransactionID = &originalID
	return txn, nil
}

func newTransaction(cardID uuid.UUID, t Type, s Status, amountMinor int64, currency string, merchant Merchant, idempotencyKey string) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		ID:                   uuid.New(),
		CardID:               cardID,
		Type:                 t,
		Status:               s,
		AmountMinor:          amountMinor,
		Currency:             currency,
		MerchantID:           merchant.ID,
		MerchantName:         merchant.Name,
		MerchantCategoryCode: merchant.CategoryCode,
		IdempotencyKey:       idempotencyKey,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// NewAuthorizationCode returns a 16 character upper-case hex code
func NewAuthorizationCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// Refundable reports whether the transaction can be the original of a refund
func (t *Transaction) Refundable() bool {
	return t.Type == TypeAuthorization && (t.Status == StatusAuthorized || t.Status == StatusSettled)
}

// ErrIllegalState indicates a (type, status) pair outside the legal table
type ErrIllegalState struct {
	Type   Type
	Status Status
}

func (e ErrIllegalState) Error() string {
	return fmt.Sprintf("illegal transaction state: %s/%s", e.Type, e.Status)
}
