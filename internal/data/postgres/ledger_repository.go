package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/platform/persistence"
)

// LedgerRepository implements the ledger.Repository interface for PostgreSQL.
// It only ever inserts and reads; ledger_entries rejects UPDATE and DELETE at the database level too.
type LedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to the given transaction
func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// CreateAccount inserts a ledger account
func (r *LedgerRepository) CreateAccount(ctx context.Context, account *ledger.Account) error {
	query := `
		INSERT INTO ledger_accounts (id, account_type, owner_entity_id, currency, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.querier.Exec(ctx, query,
		account.ID,
		account.Type,
		account.OwnerEntityID,
		account.Currency,
		account.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create ledger account",
			"account_type", string(account.Type),
			"owner_entity_id", account.Owner(),
			"error", err)
		return fmt.Errorf("failed to create ledger account: %w", err)
	}

	return nil
}

// GetOrCreateAccount inserts the account unless one already exists for (type, owner, currency),
// then returns the stored row. ON CONFLICT has no target so the partial unique index on
// owner-less SYSTEM accounts is honoured as well.
func (r *LedgerRepository) GetOrCreateAccount(ctx context.Context, accountType ledger.AccountType, ownerID string, currency string) (*ledger.Account, error) {
	candidate := ledger.NewAccount(accountType, ownerID, currency)

	query := `
		INSERT INTO ledger_accounts (id, account_type, owner_entity_id, currency, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`

	_, err := r.querier.Exec(ctx, query,
		candidate.ID,
		candidate.Type,
		candidate.OwnerEntityID,
		candidate.Currency,
		candidate.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert ledger account",
			"account_type", string(accountType),
			"owner_entity_id", ownerID,
			"error", err)
		return nil, fmt.Errorf("failed to upsert ledger account: %w", err)
	}

	return r.GetAccountByOwner(ctx, accountType, ownerID, currency)
}

const accountColumns = `id, account_type, owner_entity_id, currency, created_at`

func scanAccount(row pgx.Row) (*ledger.Account, error) {
	var acc ledger.Account
	if err := row.Scan(&acc.ID, &acc.Type, &acc.OwnerEntityID, &acc.Currency, &acc.CreatedAt); err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetAccountByOwner finds the account of an owner in a currency. An empty ownerID
// looks up the owner-less account of that type.
func (r *LedgerRepository) GetAccountByOwner(ctx context.Context, accountType ledger.AccountType, ownerID string, currency string) (*ledger.Account, error) {
	where := `account_type = $1 AND owner_entity_id = $2 AND currency = $3`
	args := []any{accountType, ownerID, currency}
	if ownerID == "" {
		where = `account_type = $1 AND owner_entity_id IS NULL AND currency = $2`
		args = []any{accountType, currency}
	}
	query := `SELECT ` + accountColumns + ` FROM ledger_accounts WHERE ` + where

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrLedgerAccountNotFound{Owner: ownerID}
		}
		r.logger.Error("Failed to get ledger account by owner",
			"account_type", string(accountType),
			"owner_entity_id", ownerID,
			"error", err)
		return nil, fmt.Errorf("failed to get ledger account by owner: %w", err)
	}
	return acc, nil
}

// GetAccountByID retrieves a ledger account by its ID
func (r *LedgerRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM ledger_accounts WHERE id = $1`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrLedgerAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get ledger account", "account_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger account: %w", err)
	}
	return acc, nil
}

// InsertEntries appends postings. The deferred balance trigger checks them at commit.
func (r *LedgerRepository) InsertEntries(ctx context.Context, entries []*ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (id, transaction_id, ledger_account_id, entry_type, amount_minor, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, e := range entries {
		_, err := r.querier.Exec(ctx, query,
			e.ID,
			e.TransactionID,
			e.LedgerAccountID,
			e.Type,
			e.AmountMinor,
			e.Currency,
			e.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to insert ledger entry",
				"transaction_id", e.TransactionID.String(),
				"entry_type", string(e.Type),
				"error", err)
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}
	}

	return nil
}

// SumByTransaction re-sums the postings of one transaction
func (r *LedgerRepository) SumByTransaction(ctx context.Context, transactionID uuid.UUID) (ledger.Totals, error) {
	query := `
		SELECT
			COALESCE(SUM(amount_minor) FILTER (WHERE entry_type = 'DEBIT'), 0)::BIGINT,
			COALESCE(SUM(amount_minor) FILTER (WHERE entry_type = 'CREDIT'), 0)::BIGINT
		FROM ledger_entries
		WHERE transaction_id = $1
	`

	var totals ledger.Totals
	if err := r.querier.QueryRow(ctx, query, transactionID).Scan(&totals.Debit, &totals.Credit); err != nil {
		r.logger.Error("Failed to sum ledger entries by transaction", "transaction_id", transactionID.String(), "error", err)
		return ledger.Totals{}, fmt.Errorf("failed to sum ledger entries by transaction: %w", err)
	}
	return totals, nil
}

// SumByAccount sums an account's postings, optionally bounded by a time window
func (r *LedgerRepository) SumByAccount(ctx context.Context, accountID uuid.UUID, window ledger.Window) (ledger.Totals, error) {
	query := `
		SELECT
			COALESCE(SUM(amount_minor) FILTER (WHERE entry_type = 'DEBIT'), 0)::BIGINT,
			COALESCE(SUM(amount_minor) FILTER (WHERE entry_type = 'CREDIT'), 0)::BIGINT
		FROM ledger_entries
		WHERE ledger_account_id = $1
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at < $3)
	`

	var totals ledger.Totals
	err := r.querier.QueryRow(ctx, query, accountID, nullableTime(window.From), nullableTime(window.To)).
		Scan(&totals.Debit, &totals.Credit)
	if err != nil {
		r.logger.Error("Failed to sum ledger entries by account", "account_id", accountID.String(), "error", err)
		return ledger.Totals{}, fmt.Errorf("failed to sum ledger entries by account: %w", err)
	}
	return totals, nil
}

// ListEntriesByTransaction returns the postings of one transaction, debit first
func (r *LedgerRepository) ListEntriesByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*ledger.Entry, error) {
	query := `
		SELECT id, transaction_id, ledger_account_id, entry_type, amount_minor, currency, created_at
		FROM ledger_entries
		WHERE transaction_id = $1
		ORDER BY entry_type DESC, id
	`

	rows, err := r.querier.Query(ctx, query, transactionID)
	if err != nil {
		r.logger.Error("Failed to list ledger entries", "transaction_id", transactionID.String(), "error", err)
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.LedgerAccountID, &e.Type, &e.AmountMinor, &e.Currency, &e.CreatedAt); err != nil {
			r.logger.Error("Failed to scan ledger entry", "error", err)
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over ledger entries", "error", err)
		return nil, fmt.Errorf("error iterating over ledger entries: %w", err)
	}

	return entries, nil
}

// FindUnbalancedTransactions lists transactions whose debits and credits differ
func (r *LedgerRepository) FindUnbalancedTransactions(ctx context.Context, limit int) ([]ledger.Anomaly, error) {
	query := `
		SELECT transaction_id, COUNT(*)::BIGINT,
			COALESCE(SUM(amount_minor) FILTER (WHERE entry_type = 'DEBIT'), 0)::BIGINT,
			COALESCE(SUM(amount_minor) FILTER (WHERE entry_type = 'CREDIT'), 0)::BIGINT
		FROM ledger_entries
		GROUP BY transaction_id
		HAVING COALESCE(SUM(amount_minor) FILTER (WHERE entry_type = 'DEBIT'), 0)
			<> COALESCE(SUM(amount_minor) FILTER (WHERE entry_type = 'CREDIT'), 0)
		LIMIT $1
	`
	return r.findAnomalies(ctx, "unbalanced", query, limit)
}

// FindEntryCountAnomalies lists transactions that do not have exactly one debit and one credit
func (r *LedgerRepository) FindEntryCountAnomalies(ctx context.Context, limit int) ([]ledger.Anomaly, error) {
	query := `
		SELECT transaction_id, COUNT(*)::BIGINT,
			COALESCE(SUM(amount_minor) FILTER (WHERE entry_type = 'DEBIT'), 0)::BIGINT,
			COALESCE(SUM(amount_minor) FILTER (WHERE entry_type = 'CREDIT'), 0)::BIGINT
		FROM ledger_entries
		GROUP BY transaction_id
		HAVING COUNT(*) FILTER (WHERE entry_type = 'DEBIT') <> 1
			OR COUNT(*) FILTER (WHERE entry_type = 'CREDIT') <> 1
		LIMIT $1
	`
	return r.findAnomalies(ctx, "entry count", query, limit)
}

func (r *LedgerRepository) findAnomalies(ctx context.Context, kind string, query string, limit int) ([]ledger.Anomaly, error) {
	rows, err := r.querier.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to query ledger anomalies", "kind", kind, "error", err)
		return nil, fmt.Errorf("failed to query %s anomalies: %w", kind, err)
	}
	defer rows.Close()

	var anomalies []ledger.Anomaly
	for rows.Next() {
		var a ledger.Anomaly
		if err := rows.Scan(&a.TransactionID, &a.EntryCount, &a.Totals.Debit, &a.Totals.Credit); err != nil {
			return nil, fmt.Errorf("failed to scan %s anomaly: %w", kind, err)
		}
		anomalies = append(anomalies, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over %s anomalies: %w", kind, err)
	}

	return anomalies, nil
}
