package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/transaction"
	"github.com/vcard-ledger/internal/transaction_processor/service"
)

// Strategy checks one spending rule against an authorization attempt
type Strategy struct {
	Name  string
	Check func(ctx context.Context, input service.LimitInput) (service.LimitDecision, error)
}

// DefaultStrategies returns the rules in evaluation order. The first failure wins,
// so a blocked MCC is reported even when the amount also breaks a limit.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "mcc_blocklist", Check: checkMCCBlocklist},
		{Name: "per_transaction", Check: checkPerTransaction},
		{Name: "daily", Check: checkDaily},
		{Name: "monthly", Check: checkMonthly},
	}
}

// LimitEvaluatorImpl implements the LimitEvaluator interface
type LimitEvaluatorImpl struct {
	transactionRepo transaction.Repository
	strategies      []Strategy
	now             func() time.Time
	logger          *slog.Logger
}

// NewLimitEvaluator creates an evaluator running the default strategies
func NewLimitEvaluator(transactionRepo transaction.Repository, logger *slog.Logger) *LimitEvaluatorImpl {
	return &LimitEvaluatorImpl{
		transactionRepo: transactionRepo,
		strategies:      DefaultStrategies(),
		now:             func() time.Time { return time.Now().UTC() },
		logger:          logger,
	}
}

var _ service.LimitEvaluator = (*LimitEvaluatorImpl)(nil)

// Evaluate runs the strategies in order inside the caller's unit, so the running
// sums it reads are the ones the unit commits against.
func (e *LimitEvaluatorImpl) Evaluate(ctx context.Context, tx pgx.Tx, c *card.Card, amountMinor int64, mcc string) (service.LimitDecision, error) {
	repo := e.transactionRepo.WithTx(tx)
	input := service.LimitInput{
		Card:        c,
		AmountMinor: amountMinor,
		MCC:         mcc,
		Now:         e.now(),
		SumApproved: func(ctx context.Context, from, to time.Time) (int64, error) {
			return repo.SumApprovedAmount(ctx, c.ID, from, to)
		},
	}

	for _, strategy := range e.strategies {
		decision, err := strategy.Check(ctx, input)
		if err != nil {
			return service.LimitDecision{}, fmt.Errorf("limit strategy %s failed: %w", strategy.Name, err)
		}
		if !decision.Allowed {
			decision.Strategy = strategy.Name
			e.logger.Debug("Spending limit strategy rejected",
				"card_id", c.ID.String(),
				"strategy", strategy.Name,
				"amount_minor", amountMinor)
			return decision, nil
		}
	}
	return service.LimitDecision{Allowed: true}, nil
}

func allow() service.LimitDecision {
	return service.LimitDecision{Allowed: true}
}

func reject(reason transaction.DeclineReason) service.LimitDecision {
	return service.LimitDecision{Allowed: false, Reason: reason}
}

func checkMCCBlocklist(_ context.Context, input service.LimitInput) (service.LimitDecision, error) {
	if input.Card.Blocks(input.MCC) {
		return reject(transaction.DeclineReasonMCCBlocked), nil
	}
	return allow(), nil
}

func checkPerTransaction(_ context.Context, input service.LimitInput) (service.LimitDecision, error) {
	if input.AmountMinor > input.Card.SingleTransactionLimit {
		return reject(transaction.DeclineReasonPerTransactionLimit), nil
	}
	return allow(), nil
}

func checkDaily(ctx context.Context, input service.LimitInput) (service.LimitDecision, error) {
	from, to := DayWindow(input.Now)
	return checkAggregate(ctx, input, input.Card.DailyLimit, from, to, transaction.DeclineReasonDailyLimit)
}

func checkMonthly(ctx context.Context, input service.LimitInput) (service.LimitDecision, error) {
	from, to := MonthWindow(input.Now)
	return checkAggregate(ctx, input, input.Card.MonthlyLimit, from, to, transaction.DeclineReasonMonthlyLimit)
}

func checkAggregate(ctx context.Context, input service.LimitInput, limit int64, from, to time.Time, reason transaction.DeclineReason) (service.LimitDecision, error) {
	if input.AmountMinor > limit {
		return reject(reason), nil
	}
	sum, err := input.SumApproved(ctx, from, to)
	if err != nil {
		return service.LimitDecision{}, err
	}
	// sum + amount > limit, written so it cannot overflow
	if sum > limit-input.AmountMinor {
		return reject(reason), nil
	}
	return allow(), nil
}

// DayWindow returns the UTC calendar day containing now as [from, to)
func DayWindow(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}

// MonthWindow returns the UTC calendar month containing now as [from, to)
func MonthWindow(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
