package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vcard-ledger/internal/domain/card"
	"github.com/vcard-ledger/internal/domain/ledger"
	"github.com/vcard-ledger/internal/domain/outbox"
	"github.com/vcard-ledger/internal/platform/persistence"
	processing "github.com/vcard-ledger/internal/transaction_processor/service"
)

// CardServiceImpl implements the CardService interface
type CardServiceImpl struct {
	runner        persistence.TxRunner
	cardRepo      card.Repository
	ledgerRepo    ledger.Repository
	outboxManager processing.OutboxManager
	logger        *slog.Logger
}

// NewCardService creates a new card service
func NewCardService(
	logger *slog.Logger,
	runner persistence.TxRunner,
	cardRepo card.Repository,
	ledgerRepo ledger.Repository,
	outboxManager processing.OutboxManager,
) CardService {
	return &CardServiceImpl{
		runner:        runner,
		cardRepo:      cardRepo,
		ledgerRepo:    ledgerRepo,
		outboxManager: outboxManager,
		logger:        logger,
	}
}

type cardStatusPayload struct {
	CardID     uuid.UUID   `json:"card_id"`
	UserID     uuid.UUID   `json:"user_id"`
	FromStatus card.Status `json:"from_status,omitempty"`
	ToStatus   card.Status `json:"to_status"`
}

type cardLimitsPayload struct {
	CardID       uuid.UUID   `json:"card_id"`
	Limits       card.Limits `json:"limits"`
	MCCBlocklist []string    `json:"mcc_blocklist"`
}

// CreateCard validates the input and stores the card, its CARD_HOLDER account and a card.created event in one unit
func (s *CardServiceImpl) CreateCard(ctx context.Context, input CreateCardInput, meta processing.RequestMeta) (*card.Card, error) {
	c, err := card.NewCard(input.UserID, input.Currency, input.Limits, input.MCCBlocklist)
	if err != nil {
		return nil, err
	}

	err = s.runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		if err := s.cardRepo.WithTx(tx).Create(ctx, c); err != nil {
			return err
		}
		if _, err := s.ledgerRepo.WithTx(tx).GetOrCreateAccount(ctx, ledger.AccountTypeCardHolder, c.ID.String(), c.Currency); err != nil {
			return err
		}
		return s.outboxManager.Record(ctx, tx, outbox.EventCardCreated, c.ID, meta,
			cardStatusPayload{CardID: c.ID, UserID: c.UserID, ToStatus: c.Status})
	})
	if err != nil {
		s.logger.Error("Failed to create card", "user_id", input.UserID.String(), "error", err)
		return nil, err
	}

	s.logger.Info("Card created", "card_id", c.ID.String(), "currency", c.Currency)
	return c, nil
}

// GetCard retrieves a card by its ID, returns ErrCardNotFound if not found
func (s *CardServiceImpl) GetCard(ctx context.Context, id uuid.UUID) (*card.Card, error) {
	return s.cardRepo.GetByID(ctx, id)
}

// TransitionStatus locks the card, applies the transition and records the matching card event
func (s *CardServiceImpl) TransitionStatus(ctx context.Context, id uuid.UUID, requested card.Status, meta processing.RequestMeta) (*card.Card, error) {
	var updated *card.Card
	err := s.runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		c, err := s.cardRepo.WithTx(tx).GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		from, err := c.ApplyTransition(requested)
		if err != nil {
			return err
		}
		if err := s.cardRepo.WithTx(tx).Update(ctx, c); err != nil {
			return err
		}

		eventName, _ := card.EventTypeFor(from, c.Status)
		if err := s.outboxManager.Record(ctx, tx, outbox.EventType(eventName), c.ID, meta,
			cardStatusPayload{CardID: c.ID, UserID: c.UserID, FromStatus: from, ToStatus: c.Status}); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		var transitionErr card.ErrInvalidStateTransition
		if errors.As(err, &transitionErr) {
			s.logger.Warn("Rejected card state transition", "card_id", id.String(), "from", string(transitionErr.From), "to", string(transitionErr.To))
		}
		return nil, err
	}

	s.logger.Info("Card status changed", "card_id", id.String(), "status", string(updated.Status))
	return updated, nil
}

// UpdateLimits reassigns the card's limits and records card.limits_updated
func (s *CardServiceImpl) UpdateLimits(ctx context.Context, id uuid.UUID, limits card.Limits, mccBlocklist []string, meta processing.RequestMeta) (*card.Card, error) {
	var updated *card.Card
	err := s.runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		c, err := s.cardRepo.WithTx(tx).GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := c.UpdateLimits(limits, mccBlocklist); err != nil {
			return err
		}
		if err := s.cardRepo.WithTx(tx).Update(ctx, c); err != nil {
			return err
		}
		if err := s.outboxManager.Record(ctx, tx, outbox.EventCardLimitsUpdated, c.ID, meta,
			cardLimitsPayload{CardID: c.ID, Limits: c.Limits(), MCCBlocklist: c.MCCBlocklist}); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetBalance returns the CARD_HOLDER position of the card. A card that never had
// an account yet reports zero totals.
func (s *CardServiceImpl) GetBalance(ctx context.Context, id uuid.UUID) (*CardBalance, error) {
	c, err := s.cardRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	balance := &CardBalance{CardID: c.ID, Currency: c.Currency}
	acc, err := s.ledgerRepo.GetAccountByOwner(ctx, ledger.AccountTypeCardHolder, c.ID.String(), c.Currency)
	if err != nil {
		if errors.Is(err, ledger.ErrLedgerAccountNotFound{}) {
			return balance, nil
		}
		return nil, err
	}

	totals, err := s.ledgerRepo.SumByAccount(ctx, acc.ID, ledger.Window{})
	if err != nil {
		return nil, fmt.Errorf("failed to sum card holder account %s: %w", acc.ID, err)
	}
	balance.AccountID = acc.ID
	balance.Totals = totals
	balance.BalanceMinor = totals.Balance()
	return balance, nil
}
