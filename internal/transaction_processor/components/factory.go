package components

import (
	"log/slog"

	"github.com/vcard-ledger/internal/config"
	"github.com/vcard-ledger/internal/data"
	"github.com/vcard-ledger/internal/platform/persistence"
	"github.com/vcard-ledger/internal/transaction_processor/service"
)

// NewBaseProcessingService wires the processing service without a worker pool
func NewBaseProcessingService(
	runner persistence.TxRunner,
	repos data.Repositories,
	logger *slog.Logger,
	cfg *config.Config,
) service.ProcessingService {
	outboxManager := NewOutboxManager(repos.Outbox, logger)

	return service.NewProcessingService(
		NewIdempotencyGuard(repos.Idempotency, runner, cfg.Idempotency.TTL, logger),
		NewRequestValidator(logger),
		NewAccountManager(repos.Cards, repos.Ledger, logger),
		NewLimitEvaluator(repos.Transactions, logger),
		NewLedgerEngine(repos.Ledger, logger),
		outboxManager,
		NewFailureRecorder(repos.Transactions, outboxManager, logger),
		repos.Transactions,
		logger,
	)
}

// CreateProcessingService creates a new ProcessingService with all its dependencies.
func CreateProcessingService(
	runner persistence.TxRunner,
	repos data.Repositories,
	logger *slog.Logger,
	cfg *config.Config,
) service.ProcessingService {
	baseService := NewBaseProcessingService(runner, repos, logger, cfg)

	workerPoolService, err := service.NewWorkerPoolProcessingService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)

	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool processing service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
