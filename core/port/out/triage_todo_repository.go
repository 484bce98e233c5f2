package out

import (
	"context"

	"github.com/google/uuid"

	"triage_server/core/domain"
)

// TodoRepository defines the outbound port for extracted todos.
// Insert dedupes on (owner, normalized description) for open items.
type TodoRepository interface {
	// Insert stores a todo. Returns inserted=false when an open item
	// with the same description already exists for the owner.
	Insert(ctx context.Context, todo *domain.TodoItem) (inserted bool, err error)

	GetByID(ctx context.Context, ownerID uuid.UUID, id int64) (*domain.TodoItem, error)
	ListOpen(ctx context.Context, ownerID uuid.UUID) ([]*domain.TodoItem, error)
	Complete(ctx context.Context, ownerID uuid.UUID, id int64) error
}
