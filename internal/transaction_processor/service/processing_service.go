package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/vcard-ledger/internal/currency"
	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/domain/outbox"
	"github.com/vcard-ledger/internal/domain/transaction"
	"github.com/vcard-ledger/internal/platform/metrics"
)

type ProcessingServiceImpl struct {
	guard           IdempotencyGuard
	validator       RequestValidator
	accountManager  AccountManager
	limitEvaluator  LimitEvaluator
	ledgerEngine    LedgerEngine
	outboxManager   OutboxManager
	failureRecorder FailureRecorder
	transactionRepo transaction.Repository
	logger          *slog.Logger
}

func NewProcessingService(
	guard IdempotencyGuard,
	validator RequestValidator,
	accountManager AccountManager,
	limitEvaluator LimitEvaluator,
	ledgerEngine LedgerEngine,
	outboxManager OutboxManager,
	failureRecorder FailureRecorder,
	transactionRepo transaction.Repository,
	logger *slog.Logger,
) ProcessingService {
	return &ProcessingServiceImpl{
		guard:           guard,
		validator:       validator,
		accountManager:  accountManager,
		limitEvaluator:  limitEvaluator,
		ledgerEngine:    ledgerEngine,
		outboxManager:   outboxManager,
		failureRecorder: failureRecorder,
		transactionRepo: transactionRepo,
		logger:          logger,
	}
}

func (s *ProcessingServiceImpl) loggerFor(meta RequestMeta) *slog.Logger {
	if meta.CorrelationID != "" {
		return s.logger.With("correlation_id", meta.CorrelationID)
	}
	return s.logger
}

func idempotencyRequest(meta RequestMeta, payload any) (idempotency.Request, error) {
	hash, err := idempotency.HashPayload(payload)
	if err != nil {
		return idempotency.Request{}, err
	}
	return idempotency.Request{Key: meta.IdempotencyKey, Scope: meta.Scope, PayloadHash: hash}, nil
}

// ProcessAuthorization decides on a card charge. Declines are successful results
// carrying a DECLINED transaction; only infrastructure and lookup failures are errors.
func (s *ProcessingServiceImpl) ProcessAuthorization(ctx context.Context, request *AuthorizationRequest) (*idempotency.Response, error) {
	logger := s.loggerFor(request.RequestMeta)

	if err := s.validator.ValidateAuthorization(request); err != nil {
		logger.Warn("Authorization request rejected", "card_id", request.CardID.String(), "error", err)
		return nil, err
	}

	idemReq, err := idempotencyRequest(request.RequestMeta, request)
	if err != nil {
		return nil, err
	}

	var result *AuthorizationResult
	resp, err := s.guard.Execute(ctx, idemReq, func(ctx context.Context, tx pgx.Tx) (int, any, error) {
		var err error
		result, err = s.authorize(ctx, tx, request, logger)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, result, nil
	})
	if err != nil {
		return nil, err
	}

	if !resp.Replayed && result != nil {
		outcome := "approved"
		if !result.Approved {
			outcome = "declined"
		}
		metrics.AuthorizationDecisions.WithLabelValues(outcome, result.DeclineReason).Inc()
	}
	return resp, nil
}

func (s *ProcessingServiceImpl) authorize(ctx context.Context, tx pgx.Tx, request *AuthorizationRequest, logger *slog.Logger) (*AuthorizationResult, error) {
	c, err := s.accountManager.LockCard(ctx, tx, request.CardID)
	if err != nil {
		return nil, err
	}

	if c.Status != card.StatusActive {
		return s.decline(ctx, tx, request, transaction.DeclineReasonCardNotActive, logger)
	}
	if request.Currency != c.Currency {
		return s.decline(ctx, tx, request, transaction.DeclineReasonCurrencyMismatch, logger)
	}

	decision, err := s.limitEvaluator.Evaluate(ctx, tx, c, request.AmountMinor, request.MerchantCategoryCode)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		logger.Info("Spending limit rejected authorization",
			"card_id", c.ID.String(),
			"strategy", decision.Strategy,
			"reason", string(decision.Reason))
		return s.decline(ctx, tx, request, decision.Reason, logger)
	}

	txn, err := transaction.NewAuthorization(c.ID, request.AmountMinor, request.Currency, request.Merchant(), request.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if err := s.transactionRepo.WithTx(tx).Create(ctx, txn); err != nil {
		return nil, err
	}

	cardHolder, merchant, err := s.accountManager.ResolveAccounts(ctx, tx, c.ID, request.MerchantID, c.Currency)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledgerEngine.PostAuthorization(ctx, tx, txn, cardHolder, merchant); err != nil {
		return nil, err
	}

	if err := s.outboxManager.Record(ctx, tx, outbox.EventTransactionAuthorized, txn.ID, request.RequestMeta, txn); err != nil {
		return nil, err
	}

	logger.Info("Authorization approved",
		"transaction_id", txn.ID.String(),
		"card_id", c.ID.String(),
		"amount_minor", txn.AmountMinor)

	return authorizationResult(txn), nil
}

func (s *ProcessingServiceImpl) decline(ctx context.Context, tx pgx.Tx, request *AuthorizationRequest, reason transaction.DeclineReason, logger *slog.Logger) (*AuthorizationResult, error) {
	txn, err := s.failureRecorder.RecordDecline(ctx, tx, request, reason)
	if err != nil {
		return nil, err
	}
	logger.Info("Authorization declined",
		"transaction_id", txn.ID.String(),
		"card_id", request.CardID.String(),
		"reason", string(reason))
	return authorizationResult(txn), nil
}

func authorizationResult(txn *transaction.Transaction) *AuthorizationResult {
	result := &AuthorizationResult{
		Approved:      txn.Status == transaction.StatusAuthorized,
		TransactionID: txn.ID,
		AmountMinor:   txn.AmountMinor,
		Amount:        displayAmount(txn.AmountMinor, txn.Currency),
		Currency:      txn.Currency,
	}
	if txn.AuthorizationCode != nil {
		result.AuthorizationCode = *txn.AuthorizationCode
	}
	if txn.DeclineReason != nil {
		result.DeclineReason = string(*txn.DeclineReason)
	}
	return result
}

// ProcessSettlement confirms an AUTHORIZED transaction in place. Amount and currency
// must match exactly; partial settlement is not supported.
func (s *ProcessingServiceImpl) ProcessSettlement(ctx context.Context, request *SettlementRequest) (*idempotency.Response, error) {
	logger := s.loggerFor(request.RequestMeta)

	if err := s.validator.ValidateSettlement(request); err != nil {
		logger.Warn("Settlement request rejected", "authorization_code", request.AuthorizationCode, "error", err)
		return nil, err
	}

	idemReq, err := idempotencyRequest(request.RequestMeta, request)
	if err != nil {
		return nil, err
	}

	return s.guard.Execute(ctx, idemReq, func(ctx context.Context, tx pgx.Tx) (int, any, error) {
		result, err := s.settle(ctx, tx, request, logger)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, result, nil
	})
}

func (s *ProcessingServiceImpl) settle(ctx context.Context, tx pgx.Tx, request *SettlementRequest, logger *slog.Logger) (*SettlementResult, error) {
	repo := s.transactionRepo.WithTx(tx)

	txn, err := repo.GetByAuthorizationCodeForUpdate(ctx, request.AuthorizationCode)
	if err != nil {
		return nil, err
	}

	if txn.Status != transaction.StatusAuthorized {
		return nil, ErrUnsupportedSettlementEvent{
			TransactionID: txn.ID,
			Reason:        fmt.Sprintf("transaction is %s, expected %s", txn.Status, transaction.StatusAuthorized),
		}
	}
	if request.SettlementAmountMinor != txn.AmountMinor {
		logger.Warn("Settlement amount mismatch",
			"transaction_id", txn.ID.String(),
			"authorized_minor", txn.AmountMinor,
			"settlement_minor", request.SettlementAmountMinor)
		return nil, ErrUnsupportedSettlementEvent{
			TransactionID: txn.ID,
			Reason:        fmt.Sprintf("amount %d does not match authorized %d", request.SettlementAmountMinor, txn.AmountMinor),
		}
	}
	if request.SettlementCurrency != txn.Currency {
		return nil, ErrUnsupportedSettlementEvent{
			TransactionID: txn.ID,
			Reason:        fmt.Sprintf("currency %s does not match authorized %s", request.SettlementCurrency, txn.Currency),
		}
	}

	if err := repo.UpdateStatus(ctx, txn.ID, transaction.StatusAuthorized, transaction.StatusSettled); err != nil {
		return nil, err
	}
	txn.Status = transaction.StatusSettled

	if err := s.outboxManager.Record(ctx, tx, outbox.EventTransactionSettled, txn.ID, request.RequestMeta, txn); err != nil {
		return nil, err
	}

	logger.Info("Transaction settled", "transaction_id", txn.ID.String(), "amount_minor", txn.AmountMinor)

	return &SettlementResult{
		TransactionID:     txn.ID,
		AuthorizationCode: request.AuthorizationCode,
		Status:            txn.Status,
		AmountMinor:       txn.AmountMinor,
		Currency:          txn.Currency,
	}, nil
}

// ProcessRefund returns some or all of an authorization through a linked REFUND
// transaction. Refunds never restore spending limit headroom.
func (s *ProcessingServiceImpl) ProcessRefund(ctx context.Context, request *RefundRequest) (*idempotency.Response, error) {
	logger := s.loggerFor(request.RequestMeta)

	if err := s.validator.ValidateRefund(request); err != nil {
		logger.Warn("Refund request rejected", "original_transaction_id", request.OriginalTransactionID.String(), "error", err)
		return nil, err
	}

	idemReq, err := idempotencyRequest(request.RequestMeta, request)
	if err != nil {
		return nil, err
	}

	return s.guard.Execute(ctx, idemReq, func(ctx context.Context, tx pgx.Tx) (int, any, error) {
		result, err := s.refund(ctx, tx, request, logger)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, result, nil
	})
}

func (s *ProcessingServiceImpl) refund(ctx context.Context, tx pgx.Tx, request *RefundRequest, logger *slog.Logger) (*RefundResult, error) {
	repo := s.transactionRepo.WithTx(tx)

	original, err := repo.GetByIDForUpdate(ctx, request.OriginalTransactionID)
	if err != nil {
		return nil, err
	}
	if !original.Refundable() {
		return nil, ErrNotRefundable{TransactionID: original.ID, Type: original.Type, Status: original.Status}
	}

	refunded, err := repo.SumRefundedAmount(ctx, original.ID)
	if err != nil {
		return nil, err
	}
	// refunded <= original always holds, so the subtraction cannot overflow
	remaining := original.AmountMinor - refunded

	// a refund defaults to the full original, a reversal to whatever is still outstanding
	amount := original.AmountMinor
	if request.Reversal {
		amount = remaining
	}
	if request.RefundAmountMinor != nil {
		amount = *request.RefundAmountMinor
	}

	if amount > remaining {
		return nil, ErrRefundExceedsOriginal{
			TransactionID:  original.ID,
			OriginalMinor:  original.AmountMinor,
			RefundedMinor:  refunded,
			RequestedMinor: amount,
		}
	}

	refundTxn, err := transaction.NewRefund(original, amount, request.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, refundTxn); err != nil {
		return nil, err
	}

	cardHolder, merchant, err := s.accountManager.ResolveAccounts(ctx, tx, original.CardID, original.MerchantID, original.Currency)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledgerEngine.PostRefund(ctx, tx, refundTxn, cardHolder, merchant); err != nil {
		return nil, err
	}
	if err := s.outboxManager.Record(ctx, tx, outbox.EventTransactionRefunded, refundTxn.ID, request.RequestMeta, refundTxn); err != nil {
		return nil, err
	}

	originalStatus := original.Status
	if request.Reversal && amount == remaining {
		if err := repo.UpdateStatus(ctx, original.ID, original.Status, transaction.StatusReversed); err != nil {
			return nil, err
		}
		originalStatus = transaction.StatusReversed
		original.Status = originalStatus
		if err := s.outboxManager.Record(ctx, tx, outbox.EventTransactionReversed, original.ID, request.RequestMeta, original); err != nil {
			return nil, err
		}
	}

	logger.Info("Refund recorded",
		"refund_transaction_id", refundTxn.ID.String(),
		"original_transaction_id", original.ID.String(),
		"amount_minor", amount,
		"reversal", request.Reversal,
		"original_status", string(originalStatus))

	return &RefundResult{
		RefundTransactionID:   refundTxn.ID,
		OriginalTransactionID: original.ID,
		OriginalStatus:        originalStatus,
		AmountMinor:           amount,
		Amount:                displayAmount(amount, refundTxn.Currency),
		Currency:              refundTxn.Currency,
		RefundedTotalMinor:    refunded + amount,
	}, nil
}

// displayAmount formats minor units for responses; the integer stays the source of truth
func displayAmount(amountMinor int64, code string) string {
	formatted, err := currency.FormatMinor(amountMinor, code)
	if err != nil {
		return ""
	}
	return formatted
}
