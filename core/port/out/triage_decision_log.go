package out

import (
	"context"

	"github.com/google/uuid"

	"triage_server/core/domain"
)

// DecisionLog records thread-resolution decisions for audit. Writes
// are best effort: a logging failure never fails the triage run.
type DecisionLog interface {
	Record(ctx context.Context, rec *domain.DecisionRecord) error
	ListRecent(ctx context.Context, ownerID uuid.UUID, limit int) ([]*domain.DecisionRecord, error)
}

// AgentErrorRepository persists per-message failures captured by the
// ingestion error boundary.
type AgentErrorRepository interface {
	Insert(ctx context.Context, e *domain.AgentError) error
	ListRecent(ctx context.Context, ownerID uuid.UUID, limit int) ([]*domain.AgentError, error)
}
