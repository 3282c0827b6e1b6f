package components

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/vcard-ledger/internal/currency"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/transaction_processor/service"
)

func TestRequestValidator_ValidateAuthorization(t *testing.T) {
	validator := NewRequestValidator(testLogger())

	tests := []struct {
		name   string
		modify func(r *service.AuthorizationRequest)
		field  string
	}{
		{"valid", func(r *service.AuthorizationRequest) {}, ""},
		{"missing card", func(r *service.AuthorizationRequest) { r.CardID = uuid.Nil }, "card_id"},
		{"zero amount", func(r *service.AuthorizationRequest) { r.AmountMinor = 0 }, "amount_minor"},
		{"negative amount", func(r *service.AuthorizationRequest) { r.AmountMinor = -5 }, "amount_minor"},
		{"missing merchant", func(r *service.AuthorizationRequest) { r.MerchantID = " " }, "merchant_id"},
		{"short mcc", func(r *service.AuthorizationRequest) { r.MerchantCategoryCode = "581" }, "merchant_category_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := authRequest(uuid.New(), "key-1", 100, "5814")
			tt.modify(request)
			err := validator.ValidateAuthorization(request)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, service.ErrInvalidRequest{Field: tt.field})
		})
	}

	t.Run("missing idempotency key", func(t *testing.T) {
		request := authRequest(uuid.New(), "", 100, "5814")
		assert.ErrorIs(t, validator.ValidateAuthorization(request), idempotency.ErrMissingKey)
	})

	t.Run("unsupported currency", func(t *testing.T) {
		request := authRequest(uuid.New(), "key-1", 100, "5814")
		request.Currency = "XYZ"
		assert.Equal(t, currency.ErrUnsupportedCurrency{Code: "XYZ"}, validator.ValidateAuthorization(request))
	})
}

func TestRequestValidator_ValidateSettlement(t *testing.T) {
	validator := NewRequestValidator(testLogger())
	valid := func() *service.SettlementRequest {
		return &service.SettlementRequest{
			RequestMeta:           webhookMeta("evt-1", "/api/v1/webhooks/settlement"),
			AuthorizationCode:     "A1B2C3D4E5F60718",
			SettlementAmountMinor: 1000,
			SettlementCurrency:    "USD",
		}
	}

	assert.NoError(t, validator.ValidateSettlement(valid()))

	request := valid()
	request.AuthorizationCode = ""
	assert.ErrorIs(t, validator.ValidateSettlement(request), service.ErrInvalidRequest{Field: "authorization_code"})

	request = valid()
	request.SettlementAmountMinor = 0
	assert.ErrorIs(t, validator.ValidateSettlement(request), service.ErrInvalidRequest{Field: "settlement_amount_minor"})

	request = valid()
	request.SettlementCurrency = "usd"
	assert.Error(t, validator.ValidateSettlement(request))

	request = valid()
	request.Scope = ""
	assert.ErrorIs(t, validator.ValidateSettlement(request), service.ErrInvalidRequest{Field: "scope"})
}

func TestRequestValidator_ValidateRefund(t *testing.T) {
	validator := NewRequestValidator(testLogger())
	meta := webhookMeta("evt-2", "/api/v1/webhooks/refund")

	assert.NoError(t, validator.ValidateRefund(&service.RefundRequest{RequestMeta: meta, OriginalTransactionID: uuid.New()}))

	assert.ErrorIs(t, validator.ValidateRefund(&service.RefundRequest{RequestMeta: meta}),
		service.ErrInvalidRequest{Field: "original_transaction_id"})

	zero := int64(0)
	assert.ErrorIs(t, validator.ValidateRefund(&service.RefundRequest{RequestMeta: meta, OriginalTransactionID: uuid.New(), RefundAmountMinor: &zero}),
		service.ErrInvalidRequest{Field: "refund_amount_minor"})
}
