// Package data selects the storage backend named by STORAGE_DRIVER and hands out
// its unit-of-work runner and repositories.
package data

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vcard-ledger/internal/config"
	"github.com/vcard-ledger/internal/data/memory"
	"github.com/vcard-ledger/internal/data/postgres"
	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/idempotency"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/domain/outbox"
	"github.com/vcard-ledger/internal/domain/transaction"
	"github.com/vcard-ledger/internal/platform/persistence"
)

// Repositories groups the repositories of one backend
type Repositories struct {
	Cards        card.Repository
	Transactions transaction.Repository
	Ledger       ledger.Repository
	Idempotency  idempotency.Repository
	Outbox       outbox.Repository
}

// Backend is an opened storage backend
type Backend struct {
	Driver string
	Runner persistence.TxRunner
	Repositories
	close func()
}

// Close releases the backend's connections
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects the configured backend. The postgres driver runs migrations first.
func Open(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*Backend, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		db, err := persistence.NewPostgresDB(ctx, logger, &cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Driver:       config.StorageDriverPostgres,
			Runner:       db,
			Repositories: PostgresRepositories(logger, db),
			close:        db.Close,
		}, nil
	case config.StorageDriverMemory:
		logger.Warn("Using in-memory storage; data is lost on restart")
		store := memory.NewStore(logger)
		return &Backend{
			Driver:       config.StorageDriverMemory,
			Runner:       store,
			Repositories: MemoryRepositories(store),
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// PostgresRepositories builds the repositories backed by db
func PostgresRepositories(logger *slog.Logger, db *persistence.PostgresDB) Repositories {
	return Repositories{
		Cards:        postgres.NewCardRepository(logger, db),
		Transactions: postgres.NewTransactionRepository(logger, db),
		Ledger:       postgres.NewLedgerRepository(logger, db),
		Idempotency:  postgres.NewIdempotencyRepository(logger, db),
		Outbox:       postgres.NewOutboxRepository(logger, db),
	}
}

// MemoryRepositories builds the repositories backed by store
func MemoryRepositories(store *memory.Store) Repositories {
	return Repositories{
		Cards:        store.Cards(),
		Transactions: store.Transactions(),
		Ledger:       store.Ledger(),
		Idempotency:  store.Idempotency(),
		Outbox:       store.Outbox(),
	}
}
