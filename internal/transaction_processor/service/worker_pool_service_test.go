package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vcard-ledger/internal/domain/idempotency"
)

// MockProcessingService mocks the ProcessingService interface
type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ProcessAuthorization(ctx context.Context, request *AuthorizationRequest) (*idempotency.Response, error) {
	args := m.Called(ctx, request)
	resp, _ := args.Get(0).(*idempotency.Response)
	return resp, args.Error(1)
}

func (m *MockProcessingService) ProcessSettlement(ctx context.Context, request *SettlementRequest) (*idempotency.Response, error) {
	args := m.Called(ctx, request)
	resp, _ := args.Get(0).(*idempotency.Response)
	return resp, args.Error(1)
}

func (m *MockProcessingService) ProcessRefund(ctx context.Context, request *RefundRequest) (*idempotency.Response, error) {
	args := m.Called(ctx, request)
	resp, _ := args.Get(0).(*idempotency.Response)
	return resp, args.Error(1)
}

func TestWorkerPoolProcessingService_Delegates(t *testing.T) {
	base := &MockProcessingService{}
	pool, err := NewWorkerPoolProcessingService(base, WorkerPoolConfig{Size: 2}, slog.Default())
	require.NoError(t, err)
	defer pool.Shutdown()

	ctx := context.Background()
	okResp := &idempotency.Response{StatusCode: 200, Body: []byte(`{"approved":true}`)}

	authReq := &AuthorizationRequest{RequestMeta: RequestMeta{IdempotencyKey: "k1", CorrelationID: "c1"}, CardID: uuid.New(), AmountMinor: 100}
	base.On("ProcessAuthorization", mock.Anything, mock.MatchedBy(func(r *AuthorizationRequest) bool {
		return r.CardID == authReq.CardID && r != authReq
	})).Return(okResp, nil).Once()

	resp, err := pool.ProcessAuthorization(ctx, authReq)
	require.NoError(t, err)
	assert.Equal(t, okResp, resp)

	settleErr := errors.New("unsupported")
	base.On("ProcessSettlement", mock.Anything, mock.Anything).Return(nil, settleErr).Once()
	_, err = pool.ProcessSettlement(ctx, &SettlementRequest{AuthorizationCode: "ABC"})
	assert.ErrorIs(t, err, settleErr)

	base.On("ProcessRefund", mock.Anything, mock.Anything).Return(okResp, nil).Once()
	resp, err = pool.ProcessRefund(ctx, &RefundRequest{OriginalTransactionID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, okResp, resp)

	assert.Equal(t, 2, pool.Capacity())
	base.AssertExpectations(t)
}

type slowService struct {
	ProcessingService
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (s *slowService) ProcessAuthorization(context.Context, *AuthorizationRequest) (*idempotency.Response, error) {
	n := s.inFlight.Add(1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	s.inFlight.Add(-1)
	return &idempotency.Response{StatusCode: 200}, nil
}

func TestWorkerPoolProcessingService_BoundsConcurrency(t *testing.T) {
	base := &slowService{}
	pool, err := NewWorkerPoolProcessingService(base, WorkerPoolConfig{Size: 3}, slog.Default())
	require.NoError(t, err)
	defer pool.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.ProcessAuthorization(context.Background(), &AuthorizationRequest{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, base.maxSeen.Load(), int32(3))
	assert.Equal(t, int32(0), base.inFlight.Load())
}

func TestWorkerPoolProcessingService_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	base := &MockProcessingService{}
	base.On("ProcessRefund", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		<-release
	}).Return(&idempotency.Response{StatusCode: 201}, nil)

	pool, err := NewWorkerPoolProcessingService(base, WorkerPoolConfig{Size: 1}, slog.Default())
	require.NoError(t, err)
	defer pool.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = pool.ProcessRefund(ctx, &RefundRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestWorkerPoolProcessingService_AbandonedWorkKeepsRunning(t *testing.T) {
	release := make(chan struct{})
	workerCtx := make(chan context.Context, 1)
	base := &MockProcessingService{}
	base.On("ProcessRefund", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		<-release
		workerCtx <- args.Get(0).(context.Context)
	}).Return(&idempotency.Response{StatusCode: 201}, nil)

	pool, err := NewWorkerPoolProcessingService(base, WorkerPoolConfig{Size: 1}, slog.Default())
	require.NoError(t, err)
	defer pool.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := pool.ProcessRefund(ctx, &RefundRequest{})
		done <- err
	}()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	close(release)

	select {
	case got := <-workerCtx:
		assert.NoError(t, got.Err(), "the unit of work must not see the caller's cancellation")
	case <-time.After(time.Second):
		t.Fatal("worker did not finish")
	}
}
