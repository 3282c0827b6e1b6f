package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vcard-ledger/internal/domain/idempotency"
)

// Sweeper deletes idempotency records whose TTL has passed
type Sweeper struct {
	records idempotency.Repository
	logger  *slog.Logger
	now     func() time.Time
}

// NewSweeper creates a new sweeper
func NewSweeper(records idempotency.Repository, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		records: records,
		logger:  logger,
		now:     time.Now,
	}
}

// Sweep removes every expired record and returns how many were deleted
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	deleted, err := s.records.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("deleting idempotency records expired before %s: %w", now.Format(time.RFC3339), err)
	}
	s.logger.Info("Swept expired idempotency records", "deleted", deleted, "cutoff", now)
	return deleted, nil
}
