package out

import (
	"context"
	"time"

	"github.com/google/uuid"

	"triage_server/core/domain"
)

// EventRepository defines the outbound port for scheduled holds.
type EventRepository interface {
	Insert(ctx context.Context, event *domain.ScheduledEvent) error
	GetByID(ctx context.Context, ownerID uuid.UUID, id int64) (*domain.ScheduledEvent, error)
	ListUpcoming(ctx context.Context, ownerID uuid.UUID, from time.Time, limit int) ([]*domain.ScheduledEvent, error)
	SetStatus(ctx context.Context, ownerID uuid.UUID, id int64, status domain.EventStatus) error
}
