package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
)

// EmbeddingAdapter implements out.EmbeddingRepository on pgx. Vectors
// are stored as float8[]; similarity math happens in the resolver, so
// the adapter only moves arrays.
type EmbeddingAdapter struct {
	pool *pgxpool.Pool
}

func NewEmbeddingAdapter(pool *pgxpool.Pool) *EmbeddingAdapter {
	return &EmbeddingAdapter{pool: pool}
}

// Upsert stores or replaces a thread's centroid vector.
func (a *EmbeddingAdapter) Upsert(ctx context.Context, ownerID uuid.UUID, threadID int64, vector []float64) error {
	query := `
		INSERT INTO thread_embeddings (owner_id, thread_id, vector, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (thread_id) DO UPDATE
		SET vector = EXCLUDED.vector, updated_at = NOW()`

	if _, err := a.pool.Exec(ctx, query, ownerID, threadID, vector); err != nil {
		return apperr.DatabaseError("embedding.upsert", err)
	}
	return nil
}

// ListForOwner returns centroids for the owner's active threads only;
// idle and archived threads never attract merges.
func (a *EmbeddingAdapter) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]*out.ThreadEmbedding, error) {
	query := `
		SELECT e.thread_id, e.vector
		FROM thread_embeddings e
		JOIN threads t ON t.id = e.thread_id
		WHERE e.owner_id = $1 AND t.state = 'active'`

	rows, err := a.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, apperr.DatabaseError("embedding.list_for_owner", err)
	}
	defer rows.Close()

	var embeddings []*out.ThreadEmbedding
	for rows.Next() {
		var e out.ThreadEmbedding
		if err := rows.Scan(&e.ThreadID, &e.Vector); err != nil {
			return nil, apperr.DatabaseError("embedding.list_for_owner", err)
		}
		embeddings = append(embeddings, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.DatabaseError("embedding.list_for_owner", err)
	}
	return embeddings, nil
}

func (a *EmbeddingAdapter) Get(ctx context.Context, ownerID uuid.UUID, threadID int64) (*out.ThreadEmbedding, error) {
	query := `SELECT thread_id, vector FROM thread_embeddings WHERE owner_id = $1 AND thread_id = $2`

	var e out.ThreadEmbedding
	err := a.pool.QueryRow(ctx, query, ownerID, threadID).Scan(&e.ThreadID, &e.Vector)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("embedding")
		}
		return nil, apperr.DatabaseError("embedding.get", err)
	}
	return &e, nil
}
