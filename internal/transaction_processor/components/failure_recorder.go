package components

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/vcard-ledger/internal/domain/outbox"
	"github.com/vcard-ledger/internal/domain/transaction"
	"github.com/vcard-ledger/internal/transaction_processor/service"
)

type FailureRecorderImpl struct {
	transactionRepo transaction.Repository
	outboxManager   service.OutboxManager
	logger          *slog.Logger
}

func NewFailureRecorder(transactionRepo transaction.Repository, outboxManager service.OutboxManager, logger *slog.Logger) *FailureRecorderImpl {
	return &FailureRecorderImpl{
		transactionRepo: transactionRepo,
		outboxManager:   outboxManager,
		logger:          logger,
	}
}

var _ service.FailureRecorder = (*FailureRecorderImpl)(nil)

// RecordDecline persists a DECLINED authorization with its reason. Declines post no
// ledger entries and do not count towards spending limits.
func (r *FailureRecorderImpl) RecordDecline(ctx context.Context, tx pgx.Tx, request *service.AuthorizationRequest, reason transaction.DeclineReason) (*transaction.Transaction, error) {
	logger := r.logger
	if request.CorrelationID != "" {
		logger = r.logger.With("correlation_id", request.CorrelationID)
	}

	txn := transaction.NewDecline(request.CardID, request.AmountMinor, request.Currency, request.Merchant(), request.IdempotencyKey, reason)
	if err := r.transactionRepo.WithTx(tx).Create(ctx, txn); err != nil {
		logger.Error("Failed to create declined transaction", "card_id", request.CardID.String(), "reason", string(reason), "error", err)
		return nil, err
	}

	if err := r.outboxManager.Record(ctx, tx, outbox.EventTransactionDeclined, txn.ID, request.RequestMeta, txn); err != nil {
		return nil, err
	}
	return txn, nil
}
