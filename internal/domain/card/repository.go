package card

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages card persistence
type Repository interface {
	Create(ctx context.Context, card *Card) error
	GetByID(ctx context.Context, id uuid.UUID) (*Card, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Card, error)
	Update(ctx context.Context, card *Card) error
	WithTx(tx pgx.Tx) Repository
}

// ErrCardNotFound indicates missing card
type ErrCardNotFound struct {
	CardID uuid.UUID
}

func (e ErrCardNotFound) Error() string {
	return "card not found: " + e.CardID.String()
}

// Is implements the errors.Is interface for ErrCardNotFound
func (e ErrCardNotFound) Is(target error) bool {
	t, ok := target.(ErrCardNotFound)
	if !ok {
		return false
	}
	// If the target CardID is empty, consider it a match for any ErrCardNotFound
	if t.CardID == uuid.Nil {
		return true
	}
	return e.CardID == t.CardID
}
