package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/domain/transaction"
)

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	cardRepo        card.Repository
	transactionRepo transaction.Repository
	ledgerRepo      ledger.Repository
	logger          *slog.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(logger *slog.Logger, cardRepo card.Repository, transactionRepo transaction.Repository, ledgerRepo ledger.Repository) TransactionService {
	return &TransactionServiceImpl{
		cardRepo:        cardRepo,
		transactionRepo: transactionRepo,
		ledgerRepo:      ledgerRepo,
		logger:          logger,
	}
}

// GetTransaction retrieves a transaction by its ID
func (s *TransactionServiceImpl) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return s.transactionRepo.GetByID(ctx, id)
}

// ListByCard retrieves paginated list of transactions for a card
// Returns transactions, total count, and any error
func (s *TransactionServiceImpl) ListByCard(ctx context.Context, cardID uuid.UUID, page, perPage int) ([]*transaction.Transaction, int64, error) {
	if _, err := s.cardRepo.GetByID(ctx, cardID); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage

	txns, err := s.transactionRepo.ListByCard(ctx, cardID, perPage, offset)
	if err != nil {
		s.logger.Error("Failed to list transactions", "card_id", cardID.String(), "error", err)
		return nil, 0, err
	}

	total, err := s.transactionRepo.CountByCard(ctx, cardID)
	if err != nil {
		return nil, 0, err
	}

	return txns, total, nil
}

// ListEntries returns the postings of an existing transaction; declined and settled-only
// rows yield an empty list
func (s *TransactionServiceImpl) ListEntries(ctx context.Context, transactionID uuid.UUID) ([]*ledger.Entry, error) {
	if _, err := s.transactionRepo.GetByID(ctx, transactionID); err != nil {
		return nil, err
	}
	return s.ledgerRepo.ListEntriesByTransaction(ctx, transactionID)
}
