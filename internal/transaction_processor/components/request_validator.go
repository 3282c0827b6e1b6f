package components

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/vcard-ledger/internal/currency"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/transaction_processor/service"
)

type RequestValidatorImpl struct {
	logger *slog.Logger
}

func NewRequestValidator(logger *slog.Logger) *RequestValidatorImpl {
	return &RequestValidatorImpl{logger: logger}
}

var _ service.RequestValidator = (*RequestValidatorImpl)(nil)

// ValidateAuthorization checks request shape. Card state and limits are decided later
// and end in a decline rather than a validation error.
func (v *RequestValidatorImpl) ValidateAuthorization(request *service.AuthorizationRequest) error {
	if err := validateMeta(request.RequestMeta); err != nil {
		return err
	}
	if request.CardID == uuid.Nil {
		return service.ErrInvalidRequest{Field: "card_id", Reason: "is required"}
	}
	if request.AmountMinor <= 0 {
		return service.ErrInvalidRequest{Field: "amount_minor", Reason: "must be positive"}
	}
	if !currency.IsSupported(request.Currency) {
		return currency.ErrUnsupportedCurrency{Code: request.Currency}
	}
	if strings.TrimSpace(request.MerchantID) == "" {
		return service.ErrInvalidRequest{Field: "merchant_id", Reason: "is required"}
	}
	if len(request.MerchantCategoryCode) != 4 {
		return service.ErrInvalidRequest{Field: "merchant_category_code", Reason: "must be 4 characters"}
	}
	return nil
}

func (v *RequestValidatorImpl) ValidateSettlement(request *service.SettlementRequest) error {
	if err := validateMeta(request.RequestMeta); err != nil {
		return err
	}
	if strings.TrimSpace(request.AuthorizationCode) == "" {
		return service.ErrInvalidRequest{Field: "authorization_code", Reason: "is required"}
	}
	if request.SettlementAmountMinor <= 0 {
		return service.ErrInvalidRequest{Field: "settlement_amount_minor", Reason: "must be positive"}
	}
	if !currency.IsSupported(request.SettlementCurrency) {
		return currency.ErrUnsupportedCurrency{Code: request.SettlementCurrency}
	}
	return nil
}

func (v *RequestValidatorImpl) ValidateRefund(request *service.RefundRequest) error {
	if err := validateMeta(request.RequestMeta); err != nil {
		return err
	}
	if request.OriginalTransactionID == uuid.Nil {
		return service.ErrInvalidRequest{Field: "original_transaction_id", Reason: "is required"}
	}
	if request.RefundAmountMinor != nil && *request.RefundAmountMinor <= 0 {
		return service.ErrInvalidRequest{Field: "refund_amount_minor", Reason: "must be positive"}
	}
	return nil
}

func validateMeta(meta service.RequestMeta) error {
	if strings.TrimSpace(meta.IdempotencyKey) == "" {
		return idempotency.ErrMissingKey
	}
	if meta.Scope == "" {
		return service.ErrInvalidRequest{Field: "scope", Reason: "is required"}
	}
	return nil
}
