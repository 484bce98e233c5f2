package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"triage_server/core/domain"
)

// MessageAdapter implements out.MessageRepository using PostgreSQL.
// The primary key is the deterministic message id, so replays collapse
// into ON CONFLICT DO NOTHING.
type MessageAdapter struct {
	db *sqlx.DB
}

func NewMessageAdapter(db *sqlx.DB) *MessageAdapter {
	return &MessageAdapter{db: db}
}

type messageRow struct {
	ID               string         `db:"id"`
	OwnerID          uuid.UUID      `db:"owner_id"`
	ContactID        sql.NullInt64  `db:"contact_id"`
	Direction        string         `db:"direction"`
	RawText          string         `db:"raw_text"`
	CleanedText      string         `db:"cleaned_text"`
	Timestamp        time.Time      `db:"timestamp"`
	ThreadID         sql.NullInt64  `db:"thread_id"`
	ExternalThreadID sql.NullString `db:"external_thread_id"`
}

func (r *messageRow) toDomain() *domain.Message {
	msg := &domain.Message{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Direction:   domain.Direction(r.Direction),
		RawText:     r.RawText,
		CleanedText: r.CleanedText,
		Timestamp:   r.Timestamp,
	}
	if r.ContactID.Valid {
		msg.ContactID = r.ContactID.Int64
	}
	if r.ThreadID.Valid {
		msg.ThreadID = &r.ThreadID.Int64
	}
	if r.ExternalThreadID.Valid {
		msg.ExternalThreadID = r.ExternalThreadID.String
	}
	return msg
}

// Insert stores a message. Returns inserted=false when the id already
// exists.
func (a *MessageAdapter) Insert(ctx context.Context, msg *domain.Message) (bool, error) {
	query := `
		INSERT INTO messages (
			id, owner_id, contact_id, direction, raw_text, cleaned_text,
			timestamp, external_thread_id
		) VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7, NULLIF($8, ''))
		ON CONFLICT (id) DO NOTHING`

	result, err := a.db.ExecContext(ctx, query,
		msg.ID, msg.OwnerID, msg.ContactID, string(msg.Direction),
		msg.RawText, msg.CleanedText, msg.Timestamp, msg.ExternalThreadID,
	)
	if err != nil {
		return false, mapError("message.insert", "message", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, mapError("message.insert", "message", err)
	}
	return n > 0, nil
}

func (a *MessageAdapter) GetByID(ctx context.Context, ownerID uuid.UUID, id string) (*domain.Message, error) {
	query := `
		SELECT id, owner_id, contact_id, direction, raw_text, cleaned_text,
		       timestamp, thread_id, external_thread_id
		FROM messages
		WHERE owner_id = $1 AND id = $2`

	var row messageRow
	if err := a.db.GetContext(ctx, &row, query, ownerID, id); err != nil {
		return nil, mapError("message.get_by_id", "message", err)
	}
	return row.toDomain(), nil
}

// AssignThread links a stored message to its resolved thread.
func (a *MessageAdapter) AssignThread(ctx context.Context, ownerID uuid.UUID, msgID string, threadID int64) error {
	query := `
		UPDATE messages
		SET thread_id = $1
		WHERE owner_id = $2 AND id = $3`

	result, err := a.db.ExecContext(ctx, query, threadID, ownerID, msgID)
	if err != nil {
		return mapError("message.assign_thread", "message", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return mapError("message.assign_thread", "message", errNoRows)
	}
	return nil
}

// ListByThread returns a thread's messages, oldest first.
func (a *MessageAdapter) ListByThread(ctx context.Context, ownerID uuid.UUID, threadID int64, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, owner_id, contact_id, direction, raw_text, cleaned_text,
		       timestamp, thread_id, external_thread_id
		FROM messages
		WHERE owner_id = $1 AND thread_id = $2
		ORDER BY timestamp ASC
		LIMIT $3`

	var rows []messageRow
	if err := a.db.SelectContext(ctx, &rows, query, ownerID, threadID, limit); err != nil {
		return nil, mapError("message.list_by_thread", "message", err)
	}

	messages := make([]*domain.Message, len(rows))
	for i := range rows {
		messages[i] = rows[i].toDomain()
	}
	return messages, nil
}
