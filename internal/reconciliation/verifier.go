// Package reconciliation re-checks ledger invariants offline and purges expired
// idempotency records. It backs the ledgerctl commands.
package reconciliation

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/platform/metrics"
)

// Report lists the transactions whose postings break the double-entry rules
type Report struct {
	Unbalanced      []ledger.Anomaly `json:"unbalanced"`
	WrongEntryCount []ledger.Anomaly `json:"wrong_entry_count"`
}

// Clean reports whether no anomaly was found
func (r *Report) Clean() bool {
	return len(r.Unbalanced) == 0 && len(r.WrongEntryCount) == 0
}

// Verifier re-sums ledger entries per transaction
type Verifier struct {
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

// NewVerifier creates a new verifier
func NewVerifier(ledgerRepo ledger.Repository, logger *slog.Logger) *Verifier {
	return &Verifier{
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// Verify runs both anomaly scans concurrently, returning at most limit findings per scan
func (v *Verifier) Verify(ctx context.Context, limit int) (*Report, error) {
	report := &Report{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		found, err := v.ledgerRepo.FindUnbalancedTransactions(gctx, limit)
		if err != nil {
			return fmt.Errorf("scanning unbalanced transactions: %w", err)
		}
		report.Unbalanced = found
		return nil
	})
	g.Go(func() error {
		found, err := v.ledgerRepo.FindEntryCountAnomalies(gctx, limit)
		if err != nil {
			return fmt.Errorf("scanning entry counts: %w", err)
		}
		report.WrongEntryCount = found
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, a := range report.Unbalanced {
		metrics.LedgerInvariantViolations.Inc()
		v.logger.Error("Unbalanced transaction found",
			"alert", true,
			"transaction_id", a.TransactionID.String(),
			"debit", a.Totals.Debit,
			"credit", a.Totals.Credit,
		)
	}
	for _, a := range report.WrongEntryCount {
		v.logger.Error("Transaction with unexpected entry count",
			"alert", true,
			"transaction_id", a.TransactionID.String(),
			"entry_count", a.EntryCount,
		)
	}

	v.logger.Info("Ledger verification finished",
		"unbalanced", len(report.Unbalanced),
		"wrong_entry_count", len(report.WrongEntryCount),
	)
	return report, nil
}
