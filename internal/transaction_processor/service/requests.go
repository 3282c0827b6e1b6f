package service

import (
	"github.com/google/uuid"

	"github.com/vcard-ledger/internal/domain/transaction"
)

// RequestMeta carries the caller context of a request. It is excluded from the
// payload hash so a retry with a new correlation id still replays.
type RequestMeta struct {
	IdempotencyKey string `json:"-"`
	Scope          string `json:"-"`
	CorrelationID  string `json:"-"`
	ActorID        string `json:"-"`
}

// AuthorizationRequest asks for an approve/decline decision on a card charge
type AuthorizationRequest struct {
	RequestMeta
	CardID               uuid.UUID `json:"card_id"`
	AmountMinor          int64     `json:"amount_minor"`
	Currency             string    `json:"currency"`
	MerchantID           string    `json:"merchant_id"`
	MerchantName         string    `json:"merchant_name"`
	MerchantCategoryCode string    `json:"merchant_category_code"`
}

// Merchant returns the merchant described by the request
func (r *AuthorizationRequest) Merchant() transaction.Merchant {
	return transaction.Merchant{ID: r.MerchantID, Name: r.MerchantName, CategoryCode: r.MerchantCategoryCode}
}

// SettlementRequest confirms the final amount of an authorization
type SettlementRequest struct {
	RequestMeta
	AuthorizationCode     string `json:"authorization_code"`
	SettlementAmountMinor int64  `json:"settlement_amount_minor"`
	SettlementCurrency    string `json:"settlement_currency"`
}

// RefundRequest returns some or all of an authorization. Reversal marks a
// processor-initiated full reversal.
type RefundRequest struct {
	RequestMeta
	OriginalTransactionID uuid.UUID `json:"original_transaction_id"`
	RefundAmountMinor     *int64    `json:"refund_amount_minor,omitempty"`
	Reversal              bool      `json:"reversal"`
}

// AuthorizationResult is the cached response of an authorization
type AuthorizationResult struct {
	Approved          bool      `json:"approved"`
	TransactionID     uuid.UUID `json:"transaction_id"`
	AuthorizationCode string    `json:"authorization_code,omitempty"`
	DeclineReason     string    `json:"decline_reason,omitempty"`
	AmountMinor       int64     `json:"amount_minor"`
	Amount            string    `json:"amount"`
	Currency          string    `json:"currency"`
}

// SettlementResult is the cached response of a settlement
type SettlementResult struct {
	TransactionID     uuid.UUID          `json:"transaction_id"`
	AuthorizationCode string             `json:"authorization_code"`
	Status            transaction.Status `json:"status"`
	AmountMinor       int64              `json:"amount_minor"`
	Currency          string             `json:"currency"`
}

// RefundResult is the cached response of a refund or reversal
type RefundResult struct {
	RefundTransactionID   uuid.UUID          `json:"refund_transaction_id"`
	OriginalTransactionID uuid.UUID          `json:"original_transaction_id"`
	OriginalStatus        transaction.Status `json:"original_status"`
	AmountMinor           int64              `json:"amount_minor"`
	Amount                string             `json:"amount"`
	Currency              string             `json:"currency"`
	RefundedTotalMinor    int64              `json:"refunded_total_minor"`
}
