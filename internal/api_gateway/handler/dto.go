package handler

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vcard-ledger/internal/api_gateway/service"
	"github.com/vcard-ledger/internal/currency"
	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/domain/transaction"
)

// CreateCardRequest represents a request to issue a new card
type CreateCardRequest struct {
	UserID                 string   `json:"user_id" binding:"required,uuid"`
	Currency               string   `json:"currency" binding:"required,len=3"`
	SingleTransactionLimit int64    `json:"single_transaction_limit" binding:"min=0"`
	DailyLimit             int64    `json:"daily_limit" binding:"min=0"`
	MonthlyLimit           int64    `json:"monthly_limit" binding:"min=0"`
	MCCBlocklist           []string `json:"mcc_blocklist"`
}

// UpdateCardStatusRequest asks for a lifecycle transition
type UpdateCardStatusRequest struct {
	RequestedStatus string `json:"requested_status" binding:"required"`
}

// UpdateCardLimitsRequest replaces the card limits. An omitted mcc_blocklist keeps the current one.
type UpdateCardLimitsRequest struct {
	SingleTransactionLimit int64    `json:"single_transaction_limit" binding:"min=0"`
	DailyLimit             int64    `json:"daily_limit" binding:"min=0"`
	MonthlyLimit           int64    `json:"monthly_limit" binding:"min=0"`
	MCCBlocklist           []string `json:"mcc_blocklist"`
}

// CardResponse represents a card in API responses
type CardResponse struct {
	ID                     string   `json:"id"`
	UserID                 string   `json:"user_id"`
	Status                 string   `json:"status"`
	Currency               string   `json:"currency"`
	SingleTransactionLimit int64    `json:"single_transaction_limit"`
	DailyLimit             int64    `json:"daily_limit"`
	MonthlyLimit           int64    `json:"monthly_limit"`
	MCCBlocklist           []string `json:"mcc_blocklist"`
	CreatedAt              string   `json:"created_at"`
	UpdatedAt              string   `json:"updated_at"`
	ClosedAt               string   `json:"closed_at,omitempty"`
}

// BalanceResponse represents the ledger position of a card
type BalanceResponse struct {
	CardID       string `json:"card_id"`
	AccountID    string `json:"account_id,omitempty"`
	Currency     string `json:"currency"`
	DebitMinor   int64  `json:"debit_minor"`
	CreditMinor  int64  `json:"credit_minor"`
	BalanceMinor int64  `json:"balance_minor"`
	Balance      string `json:"balance"`
}

// AuthorizeRequest asks for an approve/decline decision. The amount may be given in
// minor units or as a major-unit decimal string.
type AuthorizeRequest struct {
	CardID               string `json:"card_id" binding:"required,uuid"`
	AmountMinor          int64  `json:"amount_minor"`
	Amount               string `json:"amount"`
	Currency             string `json:"currency" binding:"required"`
	MerchantID           string `json:"merchant_id"`
	MerchantName         string `json:"merchant_name"`
	MerchantCategoryCode string `json:"merchant_category_code"`
	IdempotencyKey       string `json:"idempotency_key"`
}

// minorAmount resolves the charged amount in minor units of code
func (r AuthorizeRequest) minorAmount(code string) (int64, error) {
	if r.AmountMinor != 0 || r.Amount == "" {
		return r.AmountMinor, nil
	}
	return currency.ParseMajor(r.Amount, code)
}

// SettleRequest confirms the final amount of an authorization
type SettleRequest struct {
	AuthorizationCode     string `json:"authorization_code" binding:"required"`
	SettlementAmountMinor int64  `json:"settlement_amount_minor"`
	SettlementCurrency    string `json:"settlement_currency" binding:"required"`
	IdempotencyKey        string `json:"idempotency_key"`
}

// RefundRequest returns all or part of an authorization
type RefundRequest struct {
	OriginalTransactionID string `json:"original_transaction_id" binding:"required,uuid"`
	RefundAmountMinor     *int64 `json:"refund_amount_minor"`
	IdempotencyKey        string `json:"idempotency_key"`
}

// SettlementWebhookRequest is the body of a processor settlement notification
type SettlementWebhookRequest struct {
	IdempotencyKey        string `json:"idempotency_key" binding:"required"`
	AuthorizationCode     string `json:"authorization_code" binding:"required"`
	SettlementAmountMinor int64  `json:"settlement_amount_minor"`
	SettlementCurrency    string `json:"settlement_currency" binding:"required"`
}

// RefundWebhookRequest is the body of a processor refund or reversal notification
type RefundWebhookRequest struct {
	IdempotencyKey        string `json:"idempotency_key" binding:"required"`
	OriginalTransactionID string `json:"original_transaction_id" binding:"required,uuid"`
	RefundAmountMinor     *int64 `json:"refund_amount_minor"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID                    string `json:"id"`
	CardID                string `json:"card_id"`
	OriginalTransactionID string `json:"original_transaction_id,omitempty"`
	Type                  string `json:"type"`
	Status                string `json:"status"`
	AmountMinor           int64  `json:"amount_minor"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	MerchantID            string `json:"merchant_id"`
	MerchantName          string `json:"merchant_name,omitempty"`
	MerchantCategoryCode  string `json:"merchant_category_code"`
	AuthorizationCode     string `json:"authorization_code,omitempty"`
	DeclineReason         string `json:"decline_reason,omitempty"`
	CreatedAt             string `json:"created_at"`
	UpdatedAt             string `json:"updated_at"`
}

// EntryResponse represents one ledger posting in API responses
type EntryResponse struct {
	ID              string `json:"id"`
	TransactionID   string `json:"transaction_id"`
	LedgerAccountID string `json:"ledger_account_id"`
	EntryType       string `json:"entry_type"`
	AmountMinor     int64  `json:"amount_minor"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	CreatedAt       string `json:"created_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// normalizeCurrency upper-cases a code without validating it; unknown codes are
// rejected further down with ErrUnsupportedCurrency
func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// displayAmount renders minor units for humans, empty when the currency is unknown
func displayAmount(amountMinor int64, code string) string {
	s, err := currency.FormatMinor(amountMinor, code)
	if err != nil {
		return ""
	}
	return s
}

func mapCardToResponse(c *card.Card) CardResponse {
	blocklist := c.MCCBlocklist
	if blocklist == nil {
		blocklist = []string{}
	}
	response := CardResponse{
		ID:                     c.ID.String(),
		UserID:                 c.UserID.String(),
		Status:                 string(c.Status),
		Currency:               c.Currency,
		SingleTransactionLimit: c.SingleTransactionLimit,
		DailyLimit:             c.DailyLimit,
		MonthlyLimit:           c.MonthlyLimit,
		MCCBlocklist:           blocklist,
		CreatedAt:              c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:              c.UpdatedAt.Format(time.RFC3339),
	}
	if c.ClosedAt != nil {
		response.ClosedAt = c.ClosedAt.Format(time.RFC3339)
	}
	return response
}

func mapBalanceToResponse(b *service.CardBalance) BalanceResponse {
	response := BalanceResponse{
		CardID:       b.CardID.String(),
		Currency:     b.Currency,
		DebitMinor:   b.Totals.Debit,
		CreditMinor:  b.Totals.Credit,
		BalanceMinor: b.BalanceMinor,
		Balance:      displayAmount(b.BalanceMinor, b.Currency),
	}
	if b.AccountID != uuid.Nil {
		response.AccountID = b.AccountID.String()
	}
	return response
}

func mapTransactionToResponse(t *transaction.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:                   t.ID.String(),
		CardID:               t.CardID.String(),
		Type:                 string(t.Type),
		Status:               string(t.Status),
		AmountMinor:          t.AmountMinor,
		Amount:               displayAmount(t.AmountMinor, t.Currency),
		Currency:             t.Currency,
		MerchantID:           t.MerchantID,
		MerchantName:         t.MerchantName,
		MerchantCategoryCode: t.MerchantCategoryCode,
		CreatedAt:            t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            t.UpdatedAt.Format(time.RFC3339),
	}
	if t.OriginalTransactionID != nil {
		response.OriginalTransactionID = t.OriginalTransactionID.String()
	}
	if t.AuthorizationCode != nil {
		response.AuthorizationCode = *t.AuthorizationCode
	}
	if t.DeclineReason != nil {
		response.DeclineReason = string(*t.DeclineReason)
	}
	return response
}

func mapEntryToResponse(e *ledger.Entry) EntryResponse {
	return EntryResponse{
		ID:              e.ID.String(),
		TransactionID:   e.TransactionID.String(),
		LedgerAccountID: e.LedgerAccountID.String(),
		EntryType:       string(e.Type),
		AmountMinor:     e.AmountMinor,
		Amount:          displayAmount(e.AmountMinor, e.Currency),
		Currency:        e.Currency,
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
	}
}
