package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/domain/transaction"
	"github.com/vcard-ledger/internal/platform/metrics"
	"github.com/vcard-ledger/internal/transaction_processor/service"
)

// LedgerEngineImpl implements the LedgerEngine interface
type LedgerEngineImpl struct {
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

// NewLedgerEngine creates a new LedgerEngineImpl
func NewLedgerEngine(ledgerRepo ledger.Repository, logger *slog.Logger) *LedgerEngineImpl {
	return &LedgerEngineImpl{
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

var _ service.LedgerEngine = (*LedgerEngineImpl)(nil)

// PostAuthorization debits the card holder and credits the merchant
func (e *LedgerEngineImpl) PostAuthorization(ctx context.Context, tx pgx.Tx, txn *transaction.Transaction, cardHolder, merchant *ledger.Account) ([]*ledger.Entry, error) {
	if txn.Type != transaction.TypeAuthorization {
		return nil, transaction.ErrIllegalState{Type: txn.Type, Status: txn.Status}
	}
	return e.post(ctx, tx, txn, cardHolder, merchant)
}

// PostRefund mirrors an authorization: the merchant is debited and the card holder credited
func (e *LedgerEngineImpl) PostRefund(ctx context.Context, tx pgx.Tx, refund *transaction.Transaction, cardHolder, merchant *ledger.Account) ([]*ledger.Entry, error) {
	if refund.Type != transaction.TypeRefund {
		return nil, transaction.ErrIllegalState{Type: refund.Type, Status: refund.Status}
	}
	return e.post(ctx, tx, refund, merchant, cardHolder)
}

func (e *LedgerEngineImpl) post(ctx context.Context, tx pgx.Tx, txn *transaction.Transaction, debit, credit *ledger.Account) ([]*ledger.Entry, error) {
	if !transaction.PostsLedgerEntries(txn.Type, txn.Status) {
		return nil, transaction.ErrIllegalState{Type: txn.Type, Status: txn.Status}
	}
	if txn.AmountMinor <= 0 {
		return nil, transaction.ErrInvalidAmount
	}
	if err := checkAccounts(debit, credit); err != nil {
		return nil, err
	}
	if debit.Currency != txn.Currency || credit.Currency != txn.Currency {
		return nil, fmt.Errorf("ledger accounts %s/%s do not match transaction currency %s",
			debit.Currency, credit.Currency, txn.Currency)
	}

	entries := ledger.NewEntryPair(txn.ID, debit, credit, txn.AmountMinor, txn.Currency)
	if totals := ledger.TotalsOf(entries); !totals.Balanced() {
		return nil, e.violation(txn, totals, "pre-insert check")
	}

	repo := e.ledgerRepo.WithTx(tx)
	if err := repo.InsertEntries(ctx, entries); err != nil {
		return nil, fmt.Errorf("failed to insert ledger entries for %s: %w", txn.ID, err)
	}

	totals, err := repo.SumByTransaction(ctx, txn.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ledger entries for %s: %w", txn.ID, err)
	}
	if !totals.Balanced() || totals.Debit != txn.AmountMinor {
		return nil, e.violation(txn, totals, "post-insert check")
	}

	e.logger.Debug("Ledger entries posted",
		"transaction_id", txn.ID.String(),
		"debit_account", debit.ID.String(),
		"credit_account", credit.ID.String(),
		"amount_minor", txn.AmountMinor)
	return entries, nil
}

func (e *LedgerEngineImpl) violation(txn *transaction.Transaction, totals ledger.Totals, detail string) error {
	metrics.LedgerInvariantViolations.Inc()
	e.logger.Error("Ledger invariant violated",
		"alert", true,
		"transaction_id", txn.ID.String(),
		"debit", totals.Debit,
		"credit", totals.Credit,
		"detail", detail)
	return ledger.ErrLedgerInvariantViolation{TransactionID: txn.ID, Totals: totals, Detail: detail}
}

// checkAccounts accepts the (card holder, merchant) pair in either posting direction
func checkAccounts(a, b *ledger.Account) error {
	if a == nil || b == nil {
		return fmt.Errorf("ledger posting needs two accounts")
	}
	if a.ID == b.ID {
		return fmt.Errorf("ledger posting needs two distinct accounts, got %s twice", a.ID)
	}
	types := map[ledger.AccountType]bool{a.Type: true, b.Type: true}
	if !types[ledger.AccountTypeCardHolder] || !types[ledger.AccountTypeMerchant] {
		return fmt.Errorf("ledger posting needs a card holder and a merchant account, got %s and %s", a.Type, b.Type)
	}
	return nil
}
