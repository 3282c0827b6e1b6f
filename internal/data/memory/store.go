// Package memory keeps cards, transactions, ledger entries, idempotency records and
// outbox messages in process memory. It backs STORAGE_DRIVER=memory and the processor tests.
//
// Units of work run one at a time under a single mutex, which gives serializable
// behaviour trivially. A failed unit restores the snapshot taken when it started.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/domain/outbox"
	"github.com/vcard-ledger/internal/domain/transaction"
	"github.com/vcard-ledger/internal/platform/metrics"
)

// Store is the in-memory backend. It implements persistence.TxRunner and hands out
// repositories implementing the domain repository interfaces.
type Store struct {
	unitMu sync.Mutex
	mu     sync.RWMutex
	now    func() time.Time
	logger *slog.Logger

	cards         map[uuid.UUID]*card.Card
	transactions  map[uuid.UUID]*transaction.Transaction
	txnByKey      map[string]uuid.UUID
	txnByAuthCode map[string]uuid.UUID
	accounts      map[uuid.UUID]*ledger.Account
	accountsByKey map[string]uuid.UUID
	entries       []*ledger.Entry
	records       map[string]*idempotency.Record
	messages      []*outbox.Message
	nextMessageID int64
}

// NewStore creates an empty store
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger,
		cards:         make(map[uuid.UUID]*card.Card),
		transactions:  make(map[uuid.UUID]*transaction.Transaction),
		txnByKey:      make(map[string]uuid.UUID),
		txnByAuthCode: make(map[string]uuid.UUID),
		accounts:      make(map[uuid.UUID]*ledger.Account),
		accountsByKey: make(map[string]uuid.UUID),
		records:       make(map[string]*idempotency.Record),
	}
}

// SetClock overrides the time source used for idempotency expiry
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

type snapshot struct {
	cards         map[uuid.UUID]*card.Card
	transactions  map[uuid.UUID]*transaction.Transaction
	txnByKey      map[string]uuid.UUID
	txnByAuthCode map[string]uuid.UUID
	accounts      map[uuid.UUID]*ledger.Account
	accountsByKey map[string]uuid.UUID
	entryCount    int
	records       map[string]*idempotency.Record
	messageCount  int
}

func (s *Store) takeSnapshot() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &snapshot{
		cards:         make(map[uuid.UUID]*card.Card, len(s.cards)),
		transactions:  make(map[uuid.UUID]*transaction.Transaction, len(s.transactions)),
		txnByKey:      make(map[string]uuid.UUID, len(s.txnByKey)),
		txnByAuthCode: make(map[string]uuid.UUID, len(s.txnByAuthCode)),
		accounts:      make(map[uuid.UUID]*ledger.Account, len(s.accounts)),
		accountsByKey: make(map[string]uuid.UUID, len(s.accountsByKey)),
		entryCount:    len(s.entries),
		records:       make(map[string]*idempotency.Record, len(s.records)),
		messageCount:  len(s.messages),
	}
	for k, v := range s.cards {
		snap.cards[k] = cloneCard(v)
	}
	for k, v := range s.transactions {
		snap.transactions[k] = cloneTransaction(v)
	}
	for k, v := range s.txnByKey {
		snap.txnByKey[k] = v
	}
	for k, v := range s.txnByAuthCode {
		snap.txnByAuthCode[k] = v
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	for k, v := range s.accountsByKey {
		snap.accountsByKey[k] = v
	}
	for k, v := range s.records {
		rec := *v
		snap.records[k] = &rec
	}
	return snap
}

func (s *Store) restore(snap *snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cards = snap.cards
	s.transactions = snap.transactions
	s.txnByKey = snap.txnByKey
	s.txnByAuthCode = snap.txnByAuthCode
	s.accounts = snap.accounts
	s.accountsByKey = snap.accountsByKey
	s.entries = s.entries[:snap.entryCount]
	s.records = snap.records
	s.messages = s.messages[:snap.messageCount]
}

// RunSerializable runs fn as one unit of work. fn receives a nil pgx.Tx; repositories
// from this store ignore it in WithTx. Entries written by the unit must balance per
// transaction, otherwise the unit is rolled back like the deferred database check would.
func (s *Store) RunSerializable(ctx context.Context, fn func(tx pgx.Tx) error) error {
	s.unitMu.Lock()
	defer s.unitMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := s.takeSnapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		return err
	}

	if err := s.checkBalanced(snap.entryCount); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) checkBalanced(from int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[uuid.UUID]ledger.Totals)
	for _, e := range s.entries[from:] {
		t := totals[e.TransactionID]
		if e.Type == ledger.EntryTypeDebit {
			t.Debit += e.AmountMinor
		} else {
			t.Credit += e.AmountMinor
		}
		totals[e.TransactionID] = t
	}
	for txnID, t := range totals {
		if !t.Balanced() {
			metrics.LedgerInvariantViolations.Inc()
			s.logger.Error("Unbalanced ledger entries at commit",
				"alert", true,
				"transaction_id", txnID.String(),
				"debit", t.Debit,
				"credit", t.Credit)
			return ledger.ErrLedgerInvariantViolation{TransactionID: txnID, Totals: t, Detail: "commit check"}
		}
	}
	return nil
}

// Cards returns the card repository
func (s *Store) Cards() card.Repository { return &CardRepository{store: s} }

// Transactions returns the transaction repository
func (s *Store) Transactions() transaction.Repository { return &TransactionRepository{store: s} }

// Ledger returns the ledger repository
func (s *Store) Ledger() ledger.Repository { return &LedgerRepository{store: s} }

// Idempotency returns the idempotency record repository
func (s *Store) Idempotency() idempotency.Repository { return &IdempotencyRepository{store: s} }

// Outbox returns the outbox repository
func (s *Store) Outbox() outbox.Repository { return &OutboxRepository{store: s} }

func cloneCard(c *card.Card) *card.Card {
	cp := *c
	cp.MCCBlocklist = append([]string{}, c.MCCBlocklist...)
	if c.ClosedAt != nil {
		closed := *c.ClosedAt
		cp.ClosedAt = &closed
	}
	return &cp
}

func cloneTransaction(t *transaction.Transaction) *transaction.Transaction {
	cp := *t
	if t.OriginalTransactionID != nil {
		id := *t.OriginalTransactionID
		cp.OriginalTransactionID = &id
	}
	if t.AuthorizationCode != nil {
		code := *t.AuthorizationCode
		cp.AuthorizationCode = &code
	}
	if t.DeclineReason != nil {
		reason := *t.DeclineReason
		cp.DeclineReason = &reason
	}
	return &cp
}

func accountKey(accountType ledger.AccountType, ownerID, currency string) string {
	return fmt.Sprintf("%s|%s|%s", accountType, ownerID, currency)
}

func recordKey(key, scope string) string {
	return key + "\x00" + scope
}

func sortTransactionsNewestFirst(txns []*transaction.Transaction) {
	sort.Slice(txns, func(i, j int) bool {
		if txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].ID.String() < txns[j].ID.String()
		}
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
}
