package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcard-ledger/internal/domain/card"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var cardRowColumns = []string{"id", "user_id", "status", "currency", "single_transaction_limit", "daily_limit",
	"monthly_limit", "mcc_blocklist", "closed_at", "created_at", "updated_at"}

func testCard() *card.Card {
	now := time.Now().UTC()
	return &card.Card{
		ID:                     uuid.New(),
		UserID:                 uuid.New(),
		Status:                 card.StatusActive,
		Currency:               "USD",
		SingleTransactionLimit: 50000,
		DailyLimit:             100000,
		MonthlyLimit:           500000,
		MCCBlocklist:           []string{"7995"},
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

func TestCardRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CardRepository{querier: mock, logger: newTestLogger()}
	c := testCard()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO cards`).
			WithArgs(c.ID, c.UserID, c.Status, c.Currency, c.SingleTransactionLimit, c.DailyLimit, c.MonthlyLimit,
				c.MCCBlocklist, c.ClosedAt, c.CreatedAt, c.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, c)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(`INSERT INTO cards`).
			WithArgs(c.ID, c.UserID, c.Status, c.Currency, c.SingleTransactionLimit, c.DailyLimit, c.MonthlyLimit,
				c.MCCBlocklist, c.ClosedAt, c.CreatedAt, c.UpdatedAt).
			WillReturnError(expectedErr)

		err := repo.Create(ctx, c)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create card")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCardRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CardRepository{querier: mock, logger: newTestLogger()}
	expected := testCard()

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows(cardRowColumns).
			AddRow(expected.ID, expected.UserID, expected.Status, expected.Currency, expected.SingleTransactionLimit,
				expected.DailyLimit, expected.MonthlyLimit, expected.MCCBlocklist, expected.ClosedAt,
				expected.CreatedAt, expected.UpdatedAt)
		mock.ExpectQuery(`FROM cards WHERE id = \$1$`).WithArgs(expected.ID).WillReturnRows(rows)

		c, err := repo.GetByID(ctx, expected.ID)
		assert.NoError(t, err)
		assert.Equal(t, expected, c)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`FROM cards`).WithArgs(expected.ID).WillReturnError(pgx.ErrNoRows)

		c, err := repo.GetByID(ctx, expected.ID)
		assert.Nil(t, c)
		var notFound card.ErrCardNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, expected.ID, notFound.CardID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("some db error")
		mock.ExpectQuery(`FROM cards`).WithArgs(expected.ID).WillReturnError(dbErr)

		c, err := repo.GetByID(ctx, expected.ID)
		assert.Nil(t, c)
		assert.Contains(t, err.Error(), "failed to get card")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCardRepository_GetByIDForUpdate(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CardRepository{querier: mock, logger: newTestLogger()}
	expected := testCard()
	expected.MCCBlocklist = nil

	rows := pgxmock.NewRows(cardRowColumns).
		AddRow(expected.ID, expected.UserID, expected.Status, expected.Currency, expected.SingleTransactionLimit,
			expected.DailyLimit, expected.MonthlyLimit, expected.MCCBlocklist, expected.ClosedAt,
			expected.CreatedAt, expected.UpdatedAt)
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(expected.ID).WillReturnRows(rows)

	c, err := repo.GetByIDForUpdate(ctx, expected.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{}, c.MCCBlocklist)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepository_Update(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CardRepository{querier: mock, logger: newTestLogger()}
	c := testCard()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE cards`).
			WithArgs(c.Status, c.SingleTransactionLimit, c.DailyLimit, c.MonthlyLimit, c.MCCBlocklist, c.ClosedAt, c.UpdatedAt, c.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.Update(ctx, c))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("closed or missing", func(t *testing.T) {
		mock.ExpectExec(`status <> 'CLOSED'`).
			WithArgs(c.Status, c.SingleTransactionLimit, c.DailyLimit, c.MonthlyLimit, c.MCCBlocklist, c.ClosedAt, c.UpdatedAt, c.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, c)
		assert.ErrorIs(t, err, card.ErrCardNotFound{CardID: c.ID})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCardRepository_WithTx(t *testing.T) {
	repo := &CardRepository{querier: nil, logger: slog.Default()}

	mockTx := pgx.Tx(nil)
	txRepo := repo.WithTx(mockTx)

	cardRepo, ok := txRepo.(*CardRepository)
	require.True(t, ok)
	assert.Equal(t, mockTx, cardRepo.querier)
}
