package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/transaction_processor/service"
)

// AccountManagerImpl implements the AccountManager interface
type AccountManagerImpl struct {
	cardRepo   card.Repository
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

// NewAccountManager creates a new AccountManagerImpl
func NewAccountManager(cardRepo card.Repository, ledgerRepo ledger.Repository, logger *slog.Logger) *AccountManagerImpl {
	return &AccountManagerImpl{
		cardRepo:   cardRepo,
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

var _ service.AccountManager = (*AccountManagerImpl)(nil)

// LockCard reads the card with a row lock held until the unit ends
func (m *AccountManagerImpl) LockCard(ctx context.Context, tx pgx.Tx, cardID uuid.UUID) (*card.Card, error) {
	c, err := m.cardRepo.WithTx(tx).GetByIDForUpdate(ctx, cardID)
	if err != nil {
		if errors.Is(err, card.ErrCardNotFound{CardID: cardID}) {
			m.logger.Warn("Card not found for lock", "card_id", cardID.String())
			return nil, err
		}
		m.logger.Error("Failed to lock card", "card_id", cardID.String(), "error", err)
		return nil, fmt.Errorf("failed to lock card %s: %w", cardID, err)
	}
	m.logger.Debug("Card locked", "card_id", c.ID.String(), "status", string(c.Status))
	return c, nil
}

// ResolveAccounts returns the card holder account and the merchant account in currency,
// creating either on first use.
func (m *AccountManagerImpl) ResolveAccounts(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, merchantID, currency string) (*ledger.Account, *ledger.Account, error) {
	repo := m.ledgerRepo.WithTx(tx)

	cardHolder, err := repo.GetOrCreateAccount(ctx, ledger.AccountTypeCardHolder, cardID.String(), currency)
	if err != nil {
		m.logger.Error("Failed to resolve card holder account", "card_id", cardID.String(), "error", err)
		return nil, nil, fmt.Errorf("failed to resolve card holder account for %s: %w", cardID, err)
	}

	merchant, err := repo.GetOrCreateAccount(ctx, ledger.AccountTypeMerchant, merchantID, currency)
	if err != nil {
		m.logger.Error("Failed to resolve merchant account", "merchant_id", merchantID, "error", err)
		return nil, nil, fmt.Errorf("failed to resolve merchant account for %s: %w", merchantID, err)
	}

	return cardHolder, merchant, nil
}
