package out

import (
	"context"

	"github.com/google/uuid"
)

// ThreadEmbedding pairs a thread with its current centroid vector.
type ThreadEmbedding struct {
	ThreadID int64
	Vector   []float64
}

// EmbeddingRepository persists thread centroid embeddings used by the
// thread resolver for similarity matching.
type EmbeddingRepository interface {
	// Upsert stores or replaces a thread's centroid vector.
	Upsert(ctx context.Context, ownerID uuid.UUID, threadID int64, vector []float64) error

	// ListForOwner returns embeddings for the owner's active threads.
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]*ThreadEmbedding, error)

	Get(ctx context.Context, ownerID uuid.UUID, threadID int64) (*ThreadEmbedding, error)
}
