package persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"triage_server/core/domain"
)

// TodoAdapter implements out.TodoRepository using PostgreSQL. A
// partial unique index on (owner_id, lower(description)) for open
// items backs the dedup.
type TodoAdapter struct {
	db *sqlx.DB
}

func NewTodoAdapter(db *sqlx.DB) *TodoAdapter {
	return &TodoAdapter{db: db}
}

type todoRow struct {
	ID          int64         `db:"id"`
	OwnerID     uuid.UUID     `db:"owner_id"`
	ThreadID    sql.NullInt64 `db:"thread_id"`
	Description string        `db:"description"`
	Urgency     string        `db:"urgency"`
	DueDate     time.Time     `db:"due_date"`
	Status      string        `db:"status"`
	SourceMsgID string        `db:"source_msg_id"`
	CreatedAt   time.Time     `db:"created_at"`
	CompletedAt sql.NullTime  `db:"completed_at"`
}

func (r *todoRow) toDomain() *domain.TodoItem {
	todo := &domain.TodoItem{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Description: r.Description,
		Urgency:     domain.TodoUrgency(r.Urgency),
		DueDate:     r.DueDate,
		Status:      domain.TodoStatus(r.Status),
		SourceMsgID: r.SourceMsgID,
		CreatedAt:   r.CreatedAt,
	}
	if r.ThreadID.Valid {
		todo.ThreadID = &r.ThreadID.Int64
	}
	if r.CompletedAt.Valid {
		todo.CompletedAt = &r.CompletedAt.Time
	}
	return todo
}

const todoColumns = `id, owner_id, thread_id, description, urgency, due_date, status, source_msg_id, created_at, completed_at`

// Insert stores a todo. Returns inserted=false when an open item with
// the same description already exists for the owner.
func (a *TodoAdapter) Insert(ctx context.Context, todo *domain.TodoItem) (bool, error) {
	var threadID any
	if todo.ThreadID != nil {
		threadID = *todo.ThreadID
	}

	query := `
		INSERT INTO todos (owner_id, thread_id, description, urgency, due_date, status, source_msg_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := a.db.QueryRowxContext(ctx, query,
		todo.OwnerID, threadID, strings.TrimSpace(todo.Description),
		string(todo.Urgency), todo.DueDate, string(domain.TodoStatusOpen), todo.SourceMsgID,
	).Scan(&todo.ID, &todo.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, mapError("todo.insert", "todo", err)
	}
	return true, nil
}

func (a *TodoAdapter) GetByID(ctx context.Context, ownerID uuid.UUID, id int64) (*domain.TodoItem, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE owner_id = $1 AND id = $2`

	var row todoRow
	if err := a.db.GetContext(ctx, &row, query, ownerID, id); err != nil {
		return nil, mapError("todo.get_by_id", "todo", err)
	}
	return row.toDomain(), nil
}

// ListOpen returns the owner's open todos, soonest due first.
func (a *TodoAdapter) ListOpen(ctx context.Context, ownerID uuid.UUID) ([]*domain.TodoItem, error) {
	query := `
		SELECT ` + todoColumns + `
		FROM todos
		WHERE owner_id = $1 AND status = $2
		ORDER BY due_date ASC, created_at ASC`

	var rows []todoRow
	if err := a.db.SelectContext(ctx, &rows, query, ownerID, string(domain.TodoStatusOpen)); err != nil {
		return nil, mapError("todo.list_open", "todo", err)
	}

	todos := make([]*domain.TodoItem, len(rows))
	for i := range rows {
		todos[i] = rows[i].toDomain()
	}
	return todos, nil
}

func (a *TodoAdapter) Complete(ctx context.Context, ownerID uuid.UUID, id int64) error {
	query := `
		UPDATE todos
		SET status = $1, completed_at = NOW()
		WHERE owner_id = $2 AND id = $3 AND status = $4`

	result, err := a.db.ExecContext(ctx, query,
		string(domain.TodoStatusDone), ownerID, id, string(domain.TodoStatusOpen))
	if err != nil {
		return mapError("todo.complete", "todo", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return mapError("todo.complete", "todo", errNoRows)
	}
	return nil
}
