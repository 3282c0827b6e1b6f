package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcard-ledger/internal/data/memory"
	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/domain/transaction"
)

func seedAuthorization(t *testing.T, store *memory.Store, amount int64) (*card.Card, *transaction.Transaction) {
	t.Helper()
	ctx := context.Background()

	c, err := card.NewCard(uuid.New(), "USD", card.Limits{}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Cards().Create(ctx, c))

	txn, err := transaction.NewAuthorization(c.ID, amount, "USD",
		transaction.Merchant{ID: "merchant-1", Name: "Coffee", CategoryCode: "5814"}, uuid.NewString())
	require.NoError(t, err)

	holder, err := store.Ledger().GetOrCreateAccount(ctx, ledger.AccountTypeCardHolder, c.ID.String(), "USD")
	require.NoError(t, err)
	merchant, err := store.Ledger().GetOrCreateAccount(ctx, ledger.AccountTypeMerchant, "merchant-1", "USD")
	require.NoError(t, err)

	require.NoError(t, store.RunSerializable(ctx, func(tx pgx.Tx) error {
		if err := store.Transactions().Create(ctx, txn); err != nil {
			return err
		}
		return store.Ledger().InsertEntries(ctx, ledger.NewEntryPair(txn.ID, holder, merchant, amount, "USD"))
	}))
	return c, txn
}

func TestTransactionService(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(testLogger())
	svc := NewTransactionService(testLogger(), store.Cards(), store.Transactions(), store.Ledger())
	c, txn := seedAuthorization(t, store, 1250)

	t.Run("GetTransaction", func(t *testing.T) {
		got, err := svc.GetTransaction(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, txn.ID, got.ID)
		assert.Equal(t, transaction.StatusAuthorized, got.Status)

		_, err = svc.GetTransaction(ctx, uuid.New())
		assert.ErrorIs(t, err, transaction.ErrTransactionNotFound{})
	})

	t.Run("ListByCard", func(t *testing.T) {
		txns, total, err := svc.ListByCard(ctx, c.ID, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, txns, 1)
		assert.Equal(t, txn.ID, txns[0].ID)

		txns, total, err = svc.ListByCard(ctx, c.ID, 2, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Empty(t, txns)

		_, _, err = svc.ListByCard(ctx, uuid.New(), 1, 10)
		assert.ErrorIs(t, err, card.ErrCardNotFound{})
	})

	t.Run("ListEntries", func(t *testing.T) {
		entries, err := svc.ListEntries(ctx, txn.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, ledger.Totals{Debit: 1250, Credit: 1250}, ledger.TotalsOf(entries))

		_, err = svc.ListEntries(ctx, uuid.New())
		assert.ErrorIs(t, err, transaction.ErrTransactionNotFound{})
	})
}
