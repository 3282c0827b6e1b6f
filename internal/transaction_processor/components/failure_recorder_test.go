package components

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vcard-ledger/internal/domain/outbox"
	"github.com/vcard-ledger/internal/domain/transaction"
)

func TestFailureRecorder_RecordDecline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	outboxRepo := &MockOutboxRepo{}
	recorder := NewFailureRecorder(f.repos.Transactions, NewOutboxManager(outboxRepo, testLogger()), testLogger())

	outboxRepo.On("Create", ctx, mock.MatchedBy(func(m *outbox.Message) bool {
		return m.EventType == outbox.EventTransactionDeclined
	})).Return(nil)

	request := authRequest(uuid.New(), "key-decline", 2500, "5814")
	txn, err := recorder.RecordDecline(ctx, nil, request, transaction.DeclineReasonMonthlyLimit)
	require.NoError(t, err)

	assert.Equal(t, transaction.StatusDeclined, txn.Status)
	require.NotNil(t, txn.DeclineReason)
	assert.Equal(t, transaction.DeclineReasonMonthlyLimit, *txn.DeclineReason)
	assert.Nil(t, txn.AuthorizationCode)

	stored, err := f.repos.Transactions.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "key-decline", stored.IdempotencyKey)

	entries, err := f.repos.Ledger.ListEntriesByTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
	outboxRepo.AssertExpectations(t)
}

func TestFailureRecorder_DuplicateKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	recorder := NewFailureRecorder(f.repos.Transactions, NewOutboxManager(f.repos.Outbox, testLogger()), testLogger())

	request := authRequest(uuid.New(), "key-dup", 100, "5814")
	_, err := recorder.RecordDecline(ctx, nil, request, transaction.DeclineReasonCardNotActive)
	require.NoError(t, err)

	_, err = recorder.RecordDecline(ctx, nil, request, transaction.DeclineReasonCardNotActive)
	assert.ErrorIs(t, err, transaction.ErrDuplicateIdempotencyKey{Key: "key-dup"})
}
