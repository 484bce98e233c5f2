package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"triage_server/core/domain"
)

// EventAdapter implements out.EventRepository using PostgreSQL.
type EventAdapter struct {
	db *sqlx.DB
}

func NewEventAdapter(db *sqlx.DB) *EventAdapter {
	return &EventAdapter{db: db}
}

type eventRow struct {
	ID              int64          `db:"id"`
	OwnerID         uuid.UUID      `db:"owner_id"`
	ThreadID        sql.NullInt64  `db:"thread_id"`
	Title           string         `db:"title"`
	StartAt         time.Time      `db:"start_at"`
	EndAt           time.Time      `db:"end_at"`
	Status          string         `db:"status"`
	CalendarEventID sql.NullString `db:"calendar_event_id"`
	SourceMsgID     string         `db:"source_msg_id"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (r *eventRow) toDomain() *domain.ScheduledEvent {
	event := &domain.ScheduledEvent{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		Start:       r.StartAt,
		End:         r.EndAt,
		Status:      domain.EventStatus(r.Status),
		SourceMsgID: r.SourceMsgID,
		CreatedAt:   r.CreatedAt,
	}
	if r.ThreadID.Valid {
		event.ThreadID = &r.ThreadID.Int64
	}
	if r.CalendarEventID.Valid {
		event.CalendarEventID = r.CalendarEventID.String
	}
	return event
}

const eventColumns = `id, owner_id, thread_id, title, start_at, end_at, status, calendar_event_id, source_msg_id, created_at`

func (a *EventAdapter) Insert(ctx context.Context, event *domain.ScheduledEvent) error {
	var threadID any
	if event.ThreadID != nil {
		threadID = *event.ThreadID
	}

	query := `
		INSERT INTO scheduled_events (
			owner_id, thread_id, title, start_at, end_at, status,
			calendar_event_id, source_msg_id
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		RETURNING id, created_at`

	err := a.db.QueryRowxContext(ctx, query,
		event.OwnerID, threadID, event.Title, event.Start, event.End,
		string(event.Status), event.CalendarEventID, event.SourceMsgID,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return mapError("event.insert", "event", err)
	}
	return nil
}

func (a *EventAdapter) GetByID(ctx context.Context, ownerID uuid.UUID, id int64) (*domain.ScheduledEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM scheduled_events WHERE owner_id = $1 AND id = $2`

	var row eventRow
	if err := a.db.GetContext(ctx, &row, query, ownerID, id); err != nil {
		return nil, mapError("event.get_by_id", "event", err)
	}
	return row.toDomain(), nil
}

func (a *EventAdapter) ListUpcoming(ctx context.Context, ownerID uuid.UUID, from time.Time, limit int) ([]*domain.ScheduledEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM scheduled_events
		WHERE owner_id = $1 AND start_at >= $2 AND status != $3
		ORDER BY start_at ASC
		LIMIT $4`

	var rows []eventRow
	err := a.db.SelectContext(ctx, &rows, query,
		ownerID, from, string(domain.EventStatusDismissed), limit)
	if err != nil {
		return nil, mapError("event.list_upcoming", "event", err)
	}

	events := make([]*domain.ScheduledEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].toDomain()
	}
	return events, nil
}

func (a *EventAdapter) SetStatus(ctx context.Context, ownerID uuid.UUID, id int64, status domain.EventStatus) error {
	query := `UPDATE scheduled_events SET status = $1 WHERE owner_id = $2 AND id = $3`

	result, err := a.db.ExecContext(ctx, query, string(status), ownerID, id)
	if err != nil {
		return mapError("event.set_status", "event", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return mapError("event.set_status", "event", errNoRows)
	}
	return nil
}
