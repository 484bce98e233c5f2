package out

import (
	"context"

	"github.com/google/uuid"

	"triage_server/core/domain"
)

// OwnerRepository defines the outbound port for mailbox owners.
type OwnerRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Owner, error)
	ListActive(ctx context.Context) ([]*domain.Owner, error)
	UpdateSettings(ctx context.Context, id uuid.UUID, settings domain.OwnerSettings) error
}
