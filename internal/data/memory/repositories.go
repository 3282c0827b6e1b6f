package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/domain/outbox"
	"github.com/vcard-ledger/internal/domain/transaction"
)

// CardRepository implements card.Repository
type CardRepository struct {
	store *Store
}

func (r *CardRepository) WithTx(pgx.Tx) card.Repository { return r }

func (r *CardRepository) Create(_ context.Context, c *card.Card) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[c.ID]; ok {
		return fmt.Errorf("failed to create card: duplicate id %s", c.ID)
	}
	s.cards[c.ID] = cloneCard(c)
	return nil
}

func (r *CardRepository) GetByID(_ context.Context, id uuid.UUID) (*card.Card, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	if !ok {
		return nil, card.ErrCardNotFound{CardID: id}
	}
	return cloneCard(c), nil
}

// GetByIDForUpdate is GetByID; units are already exclusive
func (r *CardRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*card.Card, error) {
	return r.GetByID(ctx, id)
}

func (r *CardRepository) Update(_ context.Context, c *card.Card) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.cards[c.ID]
	if !ok || stored.Status == card.StatusClosed {
		return card.ErrCardNotFound{CardID: c.ID}
	}
	s.cards[c.ID] = cloneCard(c)
	return nil
}

// TransactionRepository implements transaction.Repository
type TransactionRepository struct {
	store *Store
}

func (r *TransactionRepository) WithTx(pgx.Tx) transaction.Repository { return r }

func (r *TransactionRepository) Create(_ context.Context, t *transaction.Transaction) error {
	if err := transaction.ValidateState(t.Type, t.Status); err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txnByKey[t.IdempotencyKey]; ok {
		return transaction.ErrDuplicateIdempotencyKey{Key: t.IdempotencyKey}
	}
	if t.AuthorizationCode != nil {
		if _, ok := s.txnByAuthCode[*t.AuthorizationCode]; ok {
			return fmt.Errorf("failed to create transaction: duplicate authorization code")
		}
		s.txnByAuthCode[*t.AuthorizationCode] = t.ID
	}
	s.txnByKey[t.IdempotencyKey] = t.ID
	s.transactions[t.ID] = cloneTransaction(t)
	return nil
}

func (r *TransactionRepository) GetByID(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[id]
	if !ok {
		return nil, transaction.ErrTransactionNotFound{TransactionID: id}
	}
	return cloneTransaction(t), nil
}

func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *TransactionRepository) GetByAuthorizationCodeForUpdate(_ context.Context, code string) (*transaction.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.txnByAuthCode[code]
	if !ok {
		return nil, transaction.ErrTransactionNotFound{AuthorizationCode: code}
	}
	return cloneTransaction(s.transactions[id]), nil
}

func (r *TransactionRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to transaction.Status) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok || t.Status != from {
		return transaction.ErrStatusConflict{TransactionID: id, Expected: from}
	}
	if err := transaction.ValidateState(t.Type, to); err != nil {
		return err
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *TransactionRepository) SumApprovedAmount(_ context.Context, cardID uuid.UUID, from, to time.Time) (int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := ledger.Window{From: from, To: to}
	var sum int64
	for _, t := range s.transactions {
		if t.CardID != cardID || t.Type != transaction.TypeAuthorization {
			continue
		}
		if t.Status != transaction.StatusAuthorized && t.Status != transaction.StatusSettled {
			continue
		}
		if window.Contains(t.CreatedAt) {
			sum += t.AmountMinor
		}
	}
	return sum, nil
}

func (r *TransactionRepository) SumRefundedAmount(_ context.Context, originalID uuid.UUID) (int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	for _, t := range s.transactions {
		if t.Type == transaction.TypeRefund && t.OriginalTransactionID != nil && *t.OriginalTransactionID == originalID {
			sum += t.AmountMinor
		}
	}
	return sum, nil
}

func (r *TransactionRepository) ListByCard(_ context.Context, cardID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error) {
	s := r.store
	s.mu.RLock()
	var txns []*transaction.Transaction
	for _, t := range s.transactions {
		if t.CardID == cardID {
			txns = append(txns, cloneTransaction(t))
		}
	}
	s.mu.RUnlock()

	sortTransactionsNewestFirst(txns)
	if offset >= len(txns) {
		return []*transaction.Transaction{}, nil
	}
	end := offset + limit
	if end > len(txns) {
		end = len(txns)
	}
	return txns[offset:end], nil
}

func (r *TransactionRepository) CountByCard(_ context.Context, cardID uuid.UUID) (int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, t := range s.transactions {
		if t.CardID == cardID {
			n++
		}
	}
	return n, nil
}

// LedgerRepository implements ledger.Repository. Like the Postgres one it has no
// update or delete operation for entries.
type LedgerRepository struct {
	store *Store
}

func (r *LedgerRepository) WithTx(pgx.Tx) ledger.Repository { return r }

func (r *LedgerRepository) CreateAccount(_ context.Context, account *ledger.Account) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := accountKey(account.Type, account.Owner(), account.Currency)
	if _, ok := s.accountsByKey[key]; ok {
		return fmt.Errorf("failed to create ledger account: %s already exists", key)
	}
	acc := *account
	s.accounts[acc.ID] = &acc
	s.accountsByKey[key] = acc.ID
	return nil
}

func (r *LedgerRepository) GetOrCreateAccount(_ context.Context, accountType ledger.AccountType, ownerID, currency string) (*ledger.Account, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := accountKey(accountType, ownerID, currency)
	if id, ok := s.accountsByKey[key]; ok {
		acc := *s.accounts[id]
		return &acc, nil
	}
	acc := ledger.NewAccount(accountType, ownerID, currency)
	stored := *acc
	s.accounts[acc.ID] = &stored
	s.accountsByKey[key] = acc.ID
	return acc, nil
}

func (r *LedgerRepository) GetAccountByOwner(_ context.Context, accountType ledger.AccountType, ownerID, currency string) (*ledger.Account, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.accountsByKey[accountKey(accountType, ownerID, currency)]
	if !ok {
		return nil, ledger.ErrLedgerAccountNotFound{Owner: ownerID}
	}
	acc := *s.accounts[id]
	return &acc, nil
}

func (r *LedgerRepository) GetAccountByID(_ context.Context, id uuid.UUID) (*ledger.Account, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, ledger.ErrLedgerAccountNotFound{AccountID: id}
	}
	cp := *acc
	return &cp, nil
}

func (r *LedgerRepository) InsertEntries(_ context.Context, entries []*ledger.Entry) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if e.AmountMinor <= 0 {
			return fmt.Errorf("failed to insert ledger entry: amount must be positive")
		}
		if _, ok := s.accounts[e.LedgerAccountID]; !ok {
			return ledger.ErrLedgerAccountNotFound{AccountID: e.LedgerAccountID}
		}
	}
	for _, e := range entries {
		cp := *e
		s.entries = append(s.entries, &cp)
	}
	return nil
}

func (r *LedgerRepository) SumByTransaction(_ context.Context, transactionID uuid.UUID) (ledger.Totals, error) {
	return ledger.TotalsOf(r.store.entriesWhere(func(e *ledger.Entry) bool {
		return e.TransactionID == transactionID
	})), nil
}

func (r *LedgerRepository) SumByAccount(_ context.Context, accountID uuid.UUID, window ledger.Window) (ledger.Totals, error) {
	return ledger.TotalsOf(r.store.entriesWhere(func(e *ledger.Entry) bool {
		return e.LedgerAccountID == accountID && window.Contains(e.CreatedAt)
	})), nil
}

func (r *LedgerRepository) ListEntriesByTransaction(_ context.Context, transactionID uuid.UUID) ([]*ledger.Entry, error) {
	entries := r.store.entriesWhere(func(e *ledger.Entry) bool {
		return e.TransactionID == transactionID
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Type > entries[j].Type
	})
	return entries, nil
}

func (r *LedgerRepository) FindUnbalancedTransactions(_ context.Context, limit int) ([]ledger.Anomaly, error) {
	return r.store.anomalies(limit, func(a ledger.Anomaly) bool {
		return !a.Totals.Balanced()
	}), nil
}

func (r *LedgerRepository) FindEntryCountAnomalies(_ context.Context, limit int) ([]ledger.Anomaly, error) {
	return r.store.anomalies(limit, func(a ledger.Anomaly) bool {
		return a.EntryCount != 2
	}), nil
}

func (s *Store) entriesWhere(match func(*ledger.Entry) bool) []*ledger.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ledger.Entry
	for _, e := range s.entries {
		if match(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

func (s *Store) anomalies(limit int, match func(ledger.Anomaly) bool) []ledger.Anomaly {
	s.mu.RLock()
	byTxn := make(map[uuid.UUID]*ledger.Anomaly)
	var order []uuid.UUID
	for _, e := range s.entries {
		a, ok := byTxn[e.TransactionID]
		if !ok {
			a = &ledger.Anomaly{TransactionID: e.TransactionID}
			byTxn[e.TransactionID] = a
			order = append(order, e.TransactionID)
		}
		a.EntryCount++
		if e.Type == ledger.EntryTypeDebit {
			a.Totals.Debit += e.AmountMinor
		} else {
			a.Totals.Credit += e.AmountMinor
		}
	}
	s.mu.RUnlock()

	var out []ledger.Anomaly
	for _, id := range order {
		if len(out) >= limit {
			break
		}
		if match(*byTxn[id]) {
			out = append(out, *byTxn[id])
		}
	}
	return out
}

// IdempotencyRepository implements idempotency.Repository
type IdempotencyRepository struct {
	store *Store
}

func (r *IdempotencyRepository) WithTx(pgx.Tx) idempotency.Repository { return r }

func (r *IdempotencyRepository) Get(_ context.Context, key, scope string) (*idempotency.Record, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey(key, scope)]
	if !ok || !rec.ExpiresAt.After(s.now()) {
		return nil, idempotency.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *IdempotencyRepository) Reserve(_ context.Context, record *idempotency.Record) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey(record.Key, record.Scope)
	if existing, ok := s.records[k]; ok && existing.ExpiresAt.After(record.CreatedAt) {
		return false, nil
	}
	cp := *record
	cp.ResponseStatus = 0
	cp.ResponseBody = nil
	s.records[k] = &cp
	return true, nil
}

func (r *IdempotencyRepository) Complete(_ context.Context, key, scope string, status int, body []byte) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordKey(key, scope)]
	if !ok {
		return idempotency.ErrRecordNotFound
	}
	rec.ResponseStatus = status
	rec.ResponseBody = append([]byte(nil), body...)
	return nil
}

func (r *IdempotencyRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for k, rec := range s.records {
		if !rec.ExpiresAt.After(now) {
			delete(s.records, k)
			deleted++
		}
	}
	return deleted, nil
}

// OutboxRepository implements outbox.Repository
type OutboxRepository struct {
	store *Store
}

func (r *OutboxRepository) WithTx(pgx.Tx) outbox.Repository { return r }

func (r *OutboxRepository) Create(_ context.Context, message *outbox.Message) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMessageID++
	message.ID = s.nextMessageID
	cp := *message
	s.messages = append(s.messages, &cp)
	return nil
}

func (r *OutboxRepository) GetPending(_ context.Context, limit int) ([]*outbox.Message, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*outbox.Message
	for _, m := range s.messages {
		if len(out) >= limit {
			break
		}
		if m.Status == outbox.StatusPending {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *OutboxRepository) UpdateStatus(_ context.Context, id int64, status outbox.Status) error {
	return r.update(id, func(m *outbox.Message) {
		m.Status = status
	})
}

func (r *OutboxRepository) IncrementAttempts(_ context.Context, id int64) error {
	return r.update(id, func(m *outbox.Message) {
		m.Attempts++
	})
}

func (r *OutboxRepository) update(id int64, apply func(*outbox.Message)) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ID == id {
			now := time.Now()
			apply(m)
			m.LastAttemptAt = &now
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}
