package components

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/transaction"
	"github.com/vcard-ledger/internal/transaction_processor/service"
)

func limitInput(c *card.Card, amount int64, mcc string, approved int64) service.LimitInput {
	return service.LimitInput{
		Card:        c,
		AmountMinor: amount,
		MCC:         mcc,
		Now:         time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
		SumApproved: func(context.Context, time.Time, time.Time) (int64, error) {
			return approved, nil
		},
	}
}

func TestLimitStrategies(t *testing.T) {
	ctx := context.Background()
	c := &card.Card{
		ID:                     uuid.New(),
		SingleTransactionLimit: 500,
		DailyLimit:             1000,
		MonthlyLimit:           5000,
		MCCBlocklist:           []string{"7995"},
	}

	tests := []struct {
		name     string
		check    func(context.Context, service.LimitInput) (service.LimitDecision, error)
		input    service.LimitInput
		expected bool
		reason   transaction.DeclineReason
	}{
		{"mcc allowed", checkMCCBlocklist, limitInput(c, 100, "5814", 0), true, ""},
		{"mcc blocked", checkMCCBlocklist, limitInput(c, 100, "7995", 0), false, transaction.DeclineReasonMCCBlocked},
		{"single at limit", checkPerTransaction, limitInput(c, 500, "5814", 0), true, ""},
		{"single over limit", checkPerTransaction, limitInput(c, 501, "5814", 0), false, transaction.DeclineReasonPerTransactionLimit},
		{"daily exactly reaches limit", checkDaily, limitInput(c, 400, "5814", 600), true, ""},
		{"daily one over", checkDaily, limitInput(c, 401, "5814", 600), false, transaction.DeclineReasonDailyLimit},
		{"monthly exactly reaches limit", checkMonthly, limitInput(c, 500, "5814", 4500), true, ""},
		{"monthly one over", checkMonthly, limitInput(c, 501, "5814", 4500), false, transaction.DeclineReasonMonthlyLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := tt.check(ctx, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, decision.Allowed)
			assert.Equal(t, tt.reason, decision.Reason)
		})
	}
}

func TestCheckAggregate_NoOverflow(t *testing.T) {
	c := &card.Card{ID: uuid.New(), DailyLimit: math.MaxInt64}
	decision, err := checkDaily(context.Background(), limitInput(c, math.MaxInt64, "5814", math.MaxInt64))
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, transaction.DeclineReasonDailyLimit, decision.Reason)
}

func TestCheckAggregate_SumFailure(t *testing.T) {
	c := &card.Card{ID: uuid.New(), DailyLimit: 1000}
	input := limitInput(c, 100, "5814", 0)
	input.SumApproved = func(context.Context, time.Time, time.Time) (int64, error) {
		return 0, errors.New("db down")
	}
	_, err := checkDaily(context.Background(), input)
	assert.Error(t, err)
}

func TestWindows(t *testing.T) {
	now := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)

	from, to := DayWindow(now)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), to)

	from, to = MonthWindow(now)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), to)

	// Windows are UTC regardless of the caller's zone
	berlin := time.FixedZone("CET", 3600)
	from, _ = DayWindow(time.Date(2024, 3, 1, 0, 30, 0, 0, berlin))
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), from)
}

func TestLimitEvaluator_FirstFailureWins(t *testing.T) {
	f := newFixture(t)
	c := f.activeCard(t, card.Limits{SingleTransaction: 100, Daily: 100, Monthly: 100}, "7995")
	evaluator := NewLimitEvaluator(f.repos.Transactions, testLogger())

	decision, err := evaluator.Evaluate(context.Background(), nil, c, 5000, "7995")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, transaction.DeclineReasonMCCBlocked, decision.Reason)
	assert.Equal(t, "mcc_blocklist", decision.Strategy)

	var exceeded *service.SpendingLimitExceeded
	require.ErrorAs(t, decision.Err(), &exceeded)
	assert.Equal(t, "mcc_blocklist", exceeded.Strategy)
}

func TestLimitEvaluator_ReadsApprovedSum(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.activeCard(t, card.Limits{SingleTransaction: 1000, Daily: 1000, Monthly: 10000})
	evaluator := NewLimitEvaluator(f.repos.Transactions, testLogger())

	approved, err := transaction.NewAuthorization(c.ID, 700, "USD", transaction.Merchant{ID: "m"}, "k-1")
	require.NoError(t, err)
	require.NoError(t, f.repos.Transactions.Create(ctx, approved))
	declined := transaction.NewDecline(c.ID, 900, "USD", transaction.Merchant{ID: "m"}, "k-2", transaction.DeclineReasonDailyLimit)
	require.NoError(t, f.repos.Transactions.Create(ctx, declined))

	decision, err := evaluator.Evaluate(ctx, nil, c, 300, "5814")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = evaluator.Evaluate(ctx, nil, c, 301, "5814")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, transaction.DeclineReasonDailyLimit, decision.Reason)
	assert.Equal(t, "daily", decision.Strategy)
}
