package out

import (
	"context"
	"time"

	"github.com/google/uuid"

	"triage_server/core/domain"
)

// ThreadRepository defines the outbound port for conversation threads.
type ThreadRepository interface {
	Create(ctx context.Context, thread *domain.ConversationThread) error
	GetByID(ctx context.Context, ownerID uuid.UUID, id int64) (*domain.ConversationThread, error)

	// ListActive returns the owner's non-archived threads.
	ListActive(ctx context.Context, ownerID uuid.UUID) ([]*domain.ConversationThread, error)

	// ListTop returns active threads ordered by priority score desc.
	ListTop(ctx context.Context, ownerID uuid.UUID, limit int) ([]*domain.ConversationThread, error)

	UpdateSummary(ctx context.Context, ownerID uuid.UUID, id int64, summary domain.ThreadSummary) error
	UpdatePriority(ctx context.Context, ownerID uuid.UUID, id int64, score int) error
	Touch(ctx context.Context, ownerID uuid.UUID, id int64, at time.Time) error
	SetState(ctx context.Context, ownerID uuid.UUID, id int64, state domain.ThreadState) error
}

// ParticipantRepository links contacts to threads. Upsert is
// idempotent on (thread, contact).
type ParticipantRepository interface {
	Upsert(ctx context.Context, threadID, contactID int64) error
	ListByThread(ctx context.Context, threadID int64) ([]*domain.ThreadParticipant, error)
}
