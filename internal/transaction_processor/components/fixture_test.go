package components

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/vcard-ledger/internal/config"
	"github.com/vcard-ledger/internal/data"
	"github.com/vcard-ledger/internal/data/memory"
	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/transaction_processor/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testConfig() *config.Config {
	return &config.Config{
		Idempotency: config.IdempotencyConfig{TTL: time.Hour},
		WorkerPool:  config.WorkerPoolConfig{Size: 8},
	}
}

// fixture runs the real components on the in-memory store
type fixture struct {
	store   *memory.Store
	repos   data.Repositories
	service service.ProcessingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := testLogger()
	store := memory.NewStore(logger)
	repos := data.MemoryRepositories(store)
	return &fixture{
		store:   store,
		repos:   repos,
		service: NewBaseProcessingService(store, repos, logger, testConfig()),
	}
}

func (f *fixture) activeCard(t *testing.T, limits card.Limits, blocklist ...string) *card.Card {
	t.Helper()
	c, err := card.NewCard(uuid.New(), "USD", limits, blocklist)
	require.NoError(t, err)
	c.Status = card.StatusActive
	require.NoError(t, f.repos.Cards.Create(context.Background(), c))
	return c
}

func clientMeta(key string) service.RequestMeta {
	return service.RequestMeta{
		IdempotencyKey: key,
		Scope:          idempotency.ClientScope("POST", "/api/v1/authorizations", "user-1"),
		CorrelationID:  "corr-" + key,
		ActorID:        "user-1",
	}
}

func webhookMeta(key, path string) service.RequestMeta {
	return service.RequestMeta{
		IdempotencyKey: key,
		Scope:          idempotency.WebhookScope("POST", path, "acme-processor"),
		ActorID:        "acme-processor",
	}
}

func authRequest(cardID uuid.UUID, key string, amount int64, mcc string) *service.AuthorizationRequest {
	return &service.AuthorizationRequest{
		RequestMeta:          clientMeta(key),
		CardID:               cardID,
		AmountMinor:          amount,
		Currency:             "USD",
		MerchantID:           "merchant-42",
		MerchantName:         "Corner Store",
		MerchantCategoryCode: mcc,
	}
}

func decodeAuthorization(t *testing.T, resp *idempotency.Response) service.AuthorizationResult {
	t.Helper()
	var result service.AuthorizationResult
	require.NoError(t, json.Unmarshal(resp.Body, &result))
	return result
}

func decodeRefund(t *testing.T, resp *idempotency.Response) service.RefundResult {
	t.Helper()
	var result service.RefundResult
	require.NoError(t, json.Unmarshal(resp.Body, &result))
	return result
}

// runnerFunc runs units without a database
type runnerFunc func(ctx context.Context, fn func(tx pgx.Tx) error) error

func (r runnerFunc) RunSerializable(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return r(ctx, fn)
}

func directRunner() runnerFunc {
	return func(_ context.Context, fn func(tx pgx.Tx) error) error {
		return fn(nil)
	}
}
