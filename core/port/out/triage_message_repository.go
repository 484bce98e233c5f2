package out

import (
	"context"

	"github.com/google/uuid"

	"triage_server/core/domain"
)

// MessageRepository defines the outbound port for message persistence.
// Insert is idempotent on message id: replaying the same provider
// message is a no-op.
type MessageRepository interface {
	// Insert stores a message. Returns inserted=false when the id
	// already exists.
	Insert(ctx context.Context, msg *domain.Message) (inserted bool, err error)

	GetByID(ctx context.Context, ownerID uuid.UUID, id string) (*domain.Message, error)

	// AssignThread links a stored message to its resolved thread.
	AssignThread(ctx context.Context, ownerID uuid.UUID, msgID string, threadID int64) error

	// ListByThread returns messages in a thread, oldest first.
	ListByThread(ctx context.Context, ownerID uuid.UUID, threadID int64, limit int) ([]*domain.Message, error)
}
