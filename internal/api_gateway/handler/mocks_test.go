package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/vcard-ledger/internal/api_gateway/service"
	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/domain/shared"
	"github.com/vcard-ledger/internal/domain/transaction"
	processing "github.com/vcard-ledger/internal/transaction_processor/service"
)

type MockCardService struct {
	mock.Mock
}

func (m *MockCardService) CreateCard(ctx context.Context, input service.CreateCardInput, meta processing.RequestMeta) (*card.Card, error) {
	args := m.Called(ctx, input, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*card.Card), args.Error(1)
}

func (m *MockCardService) GetCard(ctx context.Context, id uuid.UUID) (*card.Card, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*card.Card), args.Error(1)
}

func (m *MockCardService) TransitionStatus(ctx context.Context, id uuid.UUID, requested card.Status, meta processing.RequestMeta) (*card.Card, error) {
	args := m.Called(ctx, id, requested, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*card.Card), args.Error(1)
}

func (m *MockCardService) UpdateLimits(ctx context.Context, id uuid.UUID, limits card.Limits, mccBlocklist []string, meta processing.RequestMeta) (*card.Card, error) {
	args := m.Called(ctx, id, limits, mccBlocklist, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*card.Card), args.Error(1)
}

func (m *MockCardService) GetBalance(ctx context.Context, id uuid.UUID) (*service.CardBalance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CardBalance), args.Error(1)
}

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionService) ListByCard(ctx context.Context, cardID uuid.UUID, page, perPage int) ([]*transaction.Transaction, int64, error) {
	args := m.Called(ctx, cardID, page, perPage)
	txns, _ := args.Get(0).([]*transaction.Transaction)
	return txns, args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionService) ListEntries(ctx context.Context, transactionID uuid.UUID) ([]*ledger.Entry, error) {
	args := m.Called(ctx, transactionID)
	entries, _ := args.Get(0).([]*ledger.Entry)
	return entries, args.Error(1)
}

type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ProcessAuthorization(ctx context.Context, request *processing.AuthorizationRequest) (*idempotency.Response, error) {
	args := m.Called(ctx, request)
	resp, _ := args.Get(0).(*idempotency.Response)
	return resp, args.Error(1)
}

func (m *MockProcessingService) ProcessSettlement(ctx context.Context, request *processing.SettlementRequest) (*idempotency.Response, error) {
	args := m.Called(ctx, request)
	resp, _ := args.Get(0).(*idempotency.Response)
	return resp, args.Error(1)
}

func (m *MockProcessingService) ProcessRefund(ctx context.Context, request *processing.RefundRequest) (*idempotency.Response, error) {
	args := m.Called(ctx, request)
	resp, _ := args.Get(0).(*idempotency.Response)
	return resp, args.Error(1)
}

type MockEventDispatcher struct {
	mock.Mock
}

func (m *MockEventDispatcher) Dispatch(ctx context.Context, event *shared.ProcessorEvent) (*idempotency.Response, error) {
	args := m.Called(ctx, event)
	resp, _ := args.Get(0).(*idempotency.Response)
	return resp, args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}
