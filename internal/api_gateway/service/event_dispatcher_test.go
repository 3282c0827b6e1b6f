package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/domain/shared"
	processing "github.com/vcard-ledger/internal/transaction_processor/service"
)

type MockMessagingProducer struct {
	mock.Mock
}

func (m *MockMessagingProducer) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagingProducer) PublishRaw(ctx context.Context, key string, value []byte, headers map[string]string) error {
	args := m.Called(ctx, key, value, headers)
	return args.Error(0)
}

func (m *MockMessagingProducer) Close() error {
	args := m.Called()
	return args.Error(0)
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

func refundEvent() *shared.ProcessorEvent {
	originalID := uuid.New()
	return &shared.ProcessorEvent{
		EventID:               uuid.New(),
		Type:                  shared.ProcessorEventRefund,
		IdempotencyKey:        "evt-1",
		Scope:                 "POST:/api/v1/webhooks/refund:acme",
		ProcessorID:           "acme",
		OriginalTransactionID: &originalID,
	}
}

func TestKafkaEventDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		producer := new(MockMessagingProducer)
		dispatcher := NewKafkaEventDispatcher(testLogger(), producer)
		event := refundEvent()

		producer.On("Publish", ctx, event.OriginalTransactionID.String(), event).Return(nil)

		resp, err := dispatcher.Dispatch(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		var body QueuedEvent
		require.NoError(t, json.Unmarshal(resp.Body, &body))
		assert.Equal(t, event.EventID, body.EventID)
		assert.Equal(t, "QUEUED", body.Status)
		producer.AssertExpectations(t)
	})

	t.Run("InvalidEvent", func(t *testing.T) {
		producer := new(MockMessagingProducer)
		dispatcher := NewKafkaEventDispatcher(testLogger(), producer)

		_, err := dispatcher.Dispatch(ctx, &shared.ProcessorEvent{Type: shared.ProcessorEventSettlement})
		assert.ErrorIs(t, err, processing.ErrInvalidRequest{})
		producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PublishFailure", func(t *testing.T) {
		producer := new(MockMessagingProducer)
		dispatcher := NewKafkaEventDispatcher(testLogger(), producer)
		brokerErr := errors.New("broker down")
		producer.On("Publish", ctx, mock.Anything, mock.Anything).Return(brokerErr)

		_, err := dispatcher.Dispatch(ctx, refundEvent())
		assert.ErrorIs(t, err, brokerErr)
	})
}

func TestInlineEventDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()
	svc := new(MockProcessingService)
	dispatcher := NewInlineEventDispatcher(svc)
	event := refundEvent()
	expected := &idempotency.Response{StatusCode: http.StatusOK, Body: []byte(`{}`)}

	svc.On("ProcessRefund", ctx, mock.MatchedBy(func(r *processing.RefundRequest) bool {
		return r.OriginalTransactionID == *event.OriginalTransactionID && r.ActorID == "acme" && !r.Reversal
	})).Return(expected, nil)

	resp, err := dispatcher.Dispatch(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, expected, resp)
	svc.AssertExpectations(t)
}
