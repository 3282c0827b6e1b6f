package service

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/vcard-ledger/internal/domain/idempotency"
)

// WorkerPoolProcessingService bounds how many requests hit the database at once.
// Callers block until a worker is free and their request has been processed.
type WorkerPoolProcessingService struct {
	baseService ProcessingService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolProcessingService(
	baseService ProcessingService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProcessingService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolProcessingService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

type poolResult struct {
	resp *idempotency.Response
	err  error
}

func (s *WorkerPoolProcessingService) submit(ctx context.Context, operation string, meta RequestMeta, fn func(ctx context.Context) (*idempotency.Response, error)) (*idempotency.Response, error) {
	logger := s.logger
	if meta.CorrelationID != "" {
		logger = s.logger.With("correlation_id", meta.CorrelationID)
	}

	// Units outlive a caller that gave up; a retry with the same key replays the result.
	workCtx := context.WithoutCancel(ctx)

	resultChan := make(chan poolResult, 1)
	err := s.pool.Submit(func() {
		resp, err := fn(workCtx)
		resultChan <- poolResult{resp: resp, err: err}
	})
	if err != nil {
		logger.Error("Failed to submit request to worker pool", "operation", operation, "error", err)
		return nil, err
	}

	select {
	case res := <-resultChan:
		return res.resp, res.err
	case <-ctx.Done():
		// The worker keeps running on workCtx; its unit commits or rolls back on its own.
		return nil, ctx.Err()
	}
}

func (s *WorkerPoolProcessingService) ProcessAuthorization(ctx context.Context, request *AuthorizationRequest) (*idempotency.Response, error) {
	req := *request
	return s.submit(ctx, "authorization", req.RequestMeta, func(ctx context.Context) (*idempotency.Response, error) {
		return s.baseService.ProcessAuthorization(ctx, &req)
	})
}

func (s *WorkerPoolProcessingService) ProcessSettlement(ctx context.Context, request *SettlementRequest) (*idempotency.Response, error) {
	req := *request
	return s.submit(ctx, "settlement", req.RequestMeta, func(ctx context.Context) (*idempotency.Response, error) {
		return s.baseService.ProcessSettlement(ctx, &req)
	})
}

func (s *WorkerPoolProcessingService) ProcessRefund(ctx context.Context, request *RefundRequest) (*idempotency.Response, error) {
	req := *request
	return s.submit(ctx, "refund", req.RequestMeta, func(ctx context.Context) (*idempotency.Response, error) {
		return s.baseService.ProcessRefund(ctx, &req)
	})
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolProcessingService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolProcessingService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolProcessingService) Capacity() int {
	return s.pool.Cap()
}
