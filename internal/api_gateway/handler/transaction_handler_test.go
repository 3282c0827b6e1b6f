package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vcard-ledger/internal/api_gateway/middleware"
	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/domain/transaction"
	"github.com/vcard-ledger/internal/platform/persistence"
	processing "github.com/vcard-ledger/internal/transaction_processor/service"
)

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestTransactionHandler_Authorize(t *testing.T) {
	logger := testLogger()
	cardID := uuid.New()

	t.Run("approved response is written verbatim", func(t *testing.T) {
		svc := new(MockProcessingService)
		stored := []byte(`{"approved":true,"authorization_code":"ABCDEF0123456789"}`)
		svc.On("ProcessAuthorization", mock.Anything, mock.MatchedBy(func(r *processing.AuthorizationRequest) bool {
			return r.CardID == cardID &&
				r.AmountMinor == 1050 &&
				r.Currency == "USD" &&
				r.IdempotencyKey == "auth-1" &&
				r.ActorID == "user-7" &&
				r.Scope == "POST:/authorizations:user-7"
		})).Return(&idempotency.Response{StatusCode: http.StatusOK, Body: stored}, nil)

		router := setupTestRouter()
		router.Use(middleware.Actor())
		router.POST("/authorizations", NewTransactionHandler(logger, svc, new(MockTransactionService)).Authorize)

		req := postJSON("/authorizations", `{"card_id":"`+cardID.String()+`","amount":"10.50","currency":"usd","merchant_id":"m-1","merchant_category_code":"5411","idempotency_key":"auth-1"}`)
		req.Header.Set(middleware.ActorIDHeader, "user-7")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, string(stored), rr.Body.String())
		assert.Empty(t, rr.Header().Get(IdempotentReplayedHeader))
		svc.AssertExpectations(t)
	})

	t.Run("replay sets the replay header", func(t *testing.T) {
		svc := new(MockProcessingService)
		svc.On("ProcessAuthorization", mock.Anything, mock.MatchedBy(func(r *processing.AuthorizationRequest) bool {
			return r.IdempotencyKey == "header-key"
		})).Return(&idempotency.Response{StatusCode: http.StatusOK, Body: []byte(`{}`), Replayed: true}, nil)

		router := setupTestRouter()
		router.POST("/authorizations", NewTransactionHandler(logger, svc, new(MockTransactionService)).Authorize)

		req := postJSON("/authorizations", `{"card_id":"`+cardID.String()+`","amount_minor":100,"currency":"USD"}`)
		req.Header.Set(IdempotencyKeyHeader, "header-key")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "true", rr.Header().Get(IdempotentReplayedHeader))
	})

	t.Run("excess precision is rejected", func(t *testing.T) {
		svc := new(MockProcessingService)
		router := setupTestRouter()
		router.POST("/authorizations", NewTransactionHandler(logger, svc, new(MockTransactionService)).Authorize)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, postJSON("/authorizations", `{"card_id":"`+cardID.String()+`","amount":"1.001","currency":"USD","idempotency_key":"k"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "ProcessAuthorization", mock.Anything, mock.Anything)
	})

	t.Run("payload mismatch is a conflict", func(t *testing.T) {
		svc := new(MockProcessingService)
		svc.On("ProcessAuthorization", mock.Anything, mock.Anything).Return(nil, idempotency.ErrPayloadMismatch)
		router := setupTestRouter()
		router.POST("/authorizations", NewTransactionHandler(logger, svc, new(MockTransactionService)).Authorize)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, postJSON("/authorizations", `{"card_id":"`+cardID.String()+`","amount_minor":100,"currency":"USD","idempotency_key":"k"}`))

		assert.Equal(t, http.StatusConflict, rr.Code)
		envelope := decodeData(t, rr.Body.Bytes(), nil)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "IDEMPOTENCY_PAYLOAD_MISMATCH", envelope.Error.Code)
	})

	t.Run("exhausted serialization retries answer 503", func(t *testing.T) {
		svc := new(MockProcessingService)
		svc.On("ProcessAuthorization", mock.Anything, mock.Anything).Return(nil, persistence.ErrSerializationConflict)
		router := setupTestRouter()
		router.POST("/authorizations", NewTransactionHandler(logger, svc, new(MockTransactionService)).Authorize)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, postJSON("/authorizations", `{"card_id":"`+cardID.String()+`","amount_minor":100,"currency":"USD","idempotency_key":"k"}`))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	})
}

func TestTransactionHandler_Settle(t *testing.T) {
	svc := new(MockProcessingService)
	svc.On("ProcessSettlement", mock.Anything, mock.Anything).
		Return(nil, processing.ErrUnsupportedSettlementEvent{TransactionID: uuid.New(), Reason: "amount mismatch"})

	router := setupTestRouter()
	router.POST("/settlements", NewTransactionHandler(testLogger(), svc, new(MockTransactionService)).Settle)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, postJSON("/settlements", `{"authorization_code":"ABCDEF0123456789","settlement_amount_minor":999,"settlement_currency":"USD","idempotency_key":"s-1"}`))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	envelope := decodeData(t, rr.Body.Bytes(), nil)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "unsupported_event", envelope.Error.Code)
}

func TestTransactionHandler_Refund(t *testing.T) {
	logger := testLogger()
	originalID := uuid.New()

	t.Run("partial refund", func(t *testing.T) {
		svc := new(MockProcessingService)
		svc.On("ProcessRefund", mock.Anything, mock.MatchedBy(func(r *processing.RefundRequest) bool {
			return r.OriginalTransactionID == originalID && r.RefundAmountMinor != nil && *r.RefundAmountMinor == 300 && !r.Reversal
		})).Return(&idempotency.Response{StatusCode: http.StatusCreated, Body: []byte(`{"status":"REFUNDED"}`)}, nil)

		router := setupTestRouter()
		router.POST("/refunds", NewTransactionHandler(logger, svc, new(MockTransactionService)).Refund)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, postJSON("/refunds", `{"original_transaction_id":"`+originalID.String()+`","refund_amount_minor":300,"idempotency_key":"r-1"}`))

		assert.Equal(t, http.StatusCreated, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("refund exceeding original", func(t *testing.T) {
		svc := new(MockProcessingService)
		svc.On("ProcessRefund", mock.Anything, mock.Anything).Return(nil, processing.ErrRefundExceedsOriginal{TransactionID: originalID})

		router := setupTestRouter()
		router.POST("/refunds", NewTransactionHandler(logger, svc, new(MockTransactionService)).Refund)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, postJSON("/refunds", `{"original_transaction_id":"`+originalID.String()+`","refund_amount_minor":99999,"idempotency_key":"r-2"}`))

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "REFUND_EXCEEDS_ORIGINAL")
	})

	t.Run("missing key", func(t *testing.T) {
		svc := new(MockProcessingService)
		svc.On("ProcessRefund", mock.Anything, mock.Anything).Return(nil, idempotency.ErrMissingKey)

		router := setupTestRouter()
		router.POST("/refunds", NewTransactionHandler(logger, svc, new(MockTransactionService)).Refund)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, postJSON("/refunds", `{"original_transaction_id":"`+originalID.String()+`"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestTransactionHandler_Reads(t *testing.T) {
	logger := testLogger()
	txn, err := transaction.NewAuthorization(uuid.New(), 2500, "USD", transaction.Merchant{ID: "m-1", CategoryCode: "5411"}, "auth-1")
	require.NoError(t, err)

	t.Run("GetByID", func(t *testing.T) {
		txService := new(MockTransactionService)
		txService.On("GetTransaction", mock.Anything, txn.ID).Return(txn, nil)

		router := setupTestRouter()
		router.GET("/transactions/:id", NewTransactionHandler(logger, new(MockProcessingService), txService).GetByID)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/transactions/"+txn.ID.String(), nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var got TransactionResponse
		decodeData(t, rr.Body.Bytes(), &got)
		assert.Equal(t, "AUTHORIZED", got.Status)
		assert.Equal(t, "25.00", got.Amount)
		assert.Equal(t, *txn.AuthorizationCode, got.AuthorizationCode)
	})

	t.Run("GetByID not found", func(t *testing.T) {
		txService := new(MockTransactionService)
		id := uuid.New()
		txService.On("GetTransaction", mock.Anything, id).Return(nil, transaction.ErrTransactionNotFound{TransactionID: id})

		router := setupTestRouter()
		router.GET("/transactions/:id", NewTransactionHandler(logger, new(MockProcessingService), txService).GetByID)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/transactions/"+id.String(), nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("ListByCard", func(t *testing.T) {
		txService := new(MockTransactionService)
		txService.On("ListByCard", mock.Anything, txn.CardID, 2, 1).Return([]*transaction.Transaction{txn}, int64(3), nil)

		router := setupTestRouter()
		router.GET("/cards/:id/transactions", NewTransactionHandler(logger, new(MockProcessingService), txService).ListByCard)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cards/"+txn.CardID.String()+"/transactions?page=2&per_page=1", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		envelope := decodeData(t, rr.Body.Bytes(), nil)
		require.NotNil(t, envelope.Meta)
		assert.Equal(t, 3, envelope.Meta.TotalPages)
		assert.Equal(t, 3, envelope.Meta.TotalItems)
	})

	t.Run("ListByCard unknown card", func(t *testing.T) {
		txService := new(MockTransactionService)
		id := uuid.New()
		txService.On("ListByCard", mock.Anything, id, 1, 10).Return(nil, int64(0), card.ErrCardNotFound{CardID: id})

		router := setupTestRouter()
		router.GET("/cards/:id/transactions", NewTransactionHandler(logger, new(MockProcessingService), txService).ListByCard)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cards/"+id.String()+"/transactions", nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("ListEntries", func(t *testing.T) {
		holder := ledger.NewAccount(ledger.AccountTypeCardHolder, txn.CardID.String(), "USD")
		merchant := ledger.NewAccount(ledger.AccountTypeMerchant, "m-1", "USD")
		entries := ledger.NewEntryPair(txn.ID, holder, merchant, 2500, "USD")

		txService := new(MockTransactionService)
		txService.On("ListEntries", mock.Anything, txn.ID).Return(entries, nil)

		router := setupTestRouter()
		router.GET("/transactions/:id/entries", NewTransactionHandler(logger, new(MockProcessingService), txService).ListEntries)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/transactions/"+txn.ID.String()+"/entries", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var got []EntryResponse
		decodeData(t, rr.Body.Bytes(), &got)
		require.Len(t, got, 2)
		assert.Equal(t, "DEBIT", got[0].EntryType)
		assert.Equal(t, "CREDIT", got[1].EntryType)
	})
}
