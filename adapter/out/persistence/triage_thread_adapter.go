package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"triage_server/core/domain"
)

// ThreadAdapter implements out.ThreadRepository using PostgreSQL.
type ThreadAdapter struct {
	db *sqlx.DB
}

func NewThreadAdapter(db *sqlx.DB) *ThreadAdapter {
	return &ThreadAdapter{db: db}
}

type threadRow struct {
	ID            int64     `db:"id"`
	OwnerID       uuid.UUID `db:"owner_id"`
	Topic         string    `db:"topic"`
	SummaryText   string    `db:"summary_text"`
	State         string    `db:"state"`
	PriorityScore int       `db:"priority_score"`
	LastUpdated   time.Time `db:"last_updated"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r *threadRow) toDomain() *domain.ConversationThread {
	return &domain.ConversationThread{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		Topic:         r.Topic,
		SummaryText:   r.SummaryText,
		State:         domain.ThreadState(r.State),
		PriorityScore: r.PriorityScore,
		LastUpdated:   r.LastUpdated,
		CreatedAt:     r.CreatedAt,
	}
}

const threadColumns = `id, owner_id, topic, summary_text, state, priority_score, last_updated, created_at`

func (a *ThreadAdapter) Create(ctx context.Context, thread *domain.ConversationThread) error {
	query := `
		INSERT INTO threads (owner_id, topic, summary_text, state, priority_score, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := a.db.QueryRowxContext(ctx, query,
		thread.OwnerID, thread.Topic, thread.SummaryText,
		string(thread.State), thread.PriorityScore, thread.LastUpdated,
	).Scan(&thread.ID, &thread.CreatedAt)
	if err != nil {
		return mapError("thread.create", "thread", err)
	}
	return nil
}

func (a *ThreadAdapter) GetByID(ctx context.Context, ownerID uuid.UUID, id int64) (*domain.ConversationThread, error) {
	query := `SELECT ` + threadColumns + ` FROM threads WHERE owner_id = $1 AND id = $2`

	var row threadRow
	if err := a.db.GetContext(ctx, &row, query, ownerID, id); err != nil {
		return nil, mapError("thread.get_by_id", "thread", err)
	}
	return row.toDomain(), nil
}

// ListActive returns the owner's active threads, most recently
// updated first.
func (a *ThreadAdapter) ListActive(ctx context.Context, ownerID uuid.UUID) ([]*domain.ConversationThread, error) {
	query := `
		SELECT ` + threadColumns + `
		FROM threads
		WHERE owner_id = $1 AND state = $2
		ORDER BY last_updated DESC`

	var rows []threadRow
	if err := a.db.SelectContext(ctx, &rows, query, ownerID, string(domain.ThreadStateActive)); err != nil {
		return nil, mapError("thread.list_active", "thread", err)
	}
	return toThreads(rows), nil
}

// ListTop returns active threads ordered by priority score.
func (a *ThreadAdapter) ListTop(ctx context.Context, ownerID uuid.UUID, limit int) ([]*domain.ConversationThread, error) {
	query := `
		SELECT ` + threadColumns + `
		FROM threads
		WHERE owner_id = $1 AND state = $2
		ORDER BY priority_score DESC, last_updated DESC
		LIMIT $3`

	var rows []threadRow
	if err := a.db.SelectContext(ctx, &rows, query, ownerID, string(domain.ThreadStateActive), limit); err != nil {
		return nil, mapError("thread.list_top", "thread", err)
	}
	return toThreads(rows), nil
}

func (a *ThreadAdapter) UpdateSummary(ctx context.Context, ownerID uuid.UUID, id int64, summary domain.ThreadSummary) error {
	query := `
		UPDATE threads
		SET topic = $1, summary_text = $2
		WHERE owner_id = $3 AND id = $4`

	result, err := a.db.ExecContext(ctx, query, summary.Topic, summary.SummaryText, ownerID, id)
	if err != nil {
		return mapError("thread.update_summary", "thread", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return mapError("thread.update_summary", "thread", errNoRows)
	}
	return nil
}

func (a *ThreadAdapter) UpdatePriority(ctx context.Context, ownerID uuid.UUID, id int64, score int) error {
	query := `UPDATE threads SET priority_score = $1 WHERE owner_id = $2 AND id = $3`

	result, err := a.db.ExecContext(ctx, query, score, ownerID, id)
	if err != nil {
		return mapError("thread.update_priority", "thread", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return mapError("thread.update_priority", "thread", errNoRows)
	}
	return nil
}

// Touch bumps last_updated. State is owner-controlled and never
// changed here.
func (a *ThreadAdapter) Touch(ctx context.Context, ownerID uuid.UUID, id int64, at time.Time) error {
	query := `
		UPDATE threads
		SET last_updated = $1
		WHERE owner_id = $2 AND id = $3`

	result, err := a.db.ExecContext(ctx, query, at, ownerID, id)
	if err != nil {
		return mapError("thread.touch", "thread", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return mapError("thread.touch", "thread", errNoRows)
	}
	return nil
}

func (a *ThreadAdapter) SetState(ctx context.Context, ownerID uuid.UUID, id int64, state domain.ThreadState) error {
	query := `UPDATE threads SET state = $1 WHERE owner_id = $2 AND id = $3`

	result, err := a.db.ExecContext(ctx, query, string(state), ownerID, id)
	if err != nil {
		return mapError("thread.set_state", "thread", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return mapError("thread.set_state", "thread", errNoRows)
	}
	return nil
}

func toThreads(rows []threadRow) []*domain.ConversationThread {
	threads := make([]*domain.ConversationThread, len(rows))
	for i := range rows {
		threads[i] = rows[i].toDomain()
	}
	return threads
}

// ParticipantAdapter implements out.ParticipantRepository.
type ParticipantAdapter struct {
	db *sqlx.DB
}

func NewParticipantAdapter(db *sqlx.DB) *ParticipantAdapter {
	return &ParticipantAdapter{db: db}
}

type participantRow struct {
	ThreadID  int64     `db:"thread_id"`
	ContactID int64     `db:"contact_id"`
	AddedAt   time.Time `db:"added_at"`
}

// Upsert is idempotent on (thread, contact).
func (a *ParticipantAdapter) Upsert(ctx context.Context, threadID, contactID int64) error {
	query := `
		INSERT INTO thread_participants (thread_id, contact_id)
		VALUES ($1, $2)
		ON CONFLICT (thread_id, contact_id) DO NOTHING`

	if _, err := a.db.ExecContext(ctx, query, threadID, contactID); err != nil {
		return mapError("participant.upsert", "participant", err)
	}
	return nil
}

func (a *ParticipantAdapter) ListByThread(ctx context.Context, threadID int64) ([]*domain.ThreadParticipant, error) {
	query := `
		SELECT thread_id, contact_id, added_at
		FROM thread_participants
		WHERE thread_id = $1
		ORDER BY added_at ASC`

	var rows []participantRow
	if err := a.db.SelectContext(ctx, &rows, query, threadID); err != nil {
		return nil, mapError("participant.list_by_thread", "participant", err)
	}

	participants := make([]*domain.ThreadParticipant, len(rows))
	for i := range rows {
		participants[i] = &domain.ThreadParticipant{
			ThreadID:  rows[i].ThreadID,
			ContactID: rows[i].ContactID,
			AddedAt:   rows[i].AddedAt,
		}
	}
	return participants, nil
}
