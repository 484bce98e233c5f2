package out

import (
	"context"

	"github.com/google/uuid"

	"triage_server/core/domain"
)

// ContactRepository defines the outbound port for contact persistence.
// PrimaryIdentifier is unique per owner.
type ContactRepository interface {
	Create(ctx context.Context, contact *domain.Contact) error
	GetByIdentifier(ctx context.Context, ownerID uuid.UUID, identifier string) (*domain.Contact, error)
	GetByID(ctx context.Context, ownerID uuid.UUID, id int64) (*domain.Contact, error)
	Update(ctx context.Context, contact *domain.Contact) error
}
