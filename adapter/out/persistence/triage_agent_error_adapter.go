package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"triage_server/core/domain"
)

// AgentErrorAdapter implements out.AgentErrorRepository using
// PostgreSQL.
type AgentErrorAdapter struct {
	db *sqlx.DB
}

func NewAgentErrorAdapter(db *sqlx.DB) *AgentErrorAdapter {
	return &AgentErrorAdapter{db: db}
}

type agentErrorRow struct {
	ID          int64          `db:"id"`
	OwnerID     uuid.UUID      `db:"owner_id"`
	ErrorID     string         `db:"error_id"`
	MessageID   sql.NullString `db:"message_id"`
	Stage       string         `db:"stage"`
	Code        string         `db:"code"`
	UserMessage string         `db:"user_message"`
	Detail      string         `db:"detail"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r *agentErrorRow) toDomain() *domain.AgentError {
	e := &domain.AgentError{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		ErrorID:     r.ErrorID,
		Stage:       r.Stage,
		Code:        r.Code,
		UserMessage: r.UserMessage,
		Detail:      r.Detail,
		CreatedAt:   r.CreatedAt,
	}
	if r.MessageID.Valid {
		e.MessageID = r.MessageID.String
	}
	return e
}

func (a *AgentErrorAdapter) Insert(ctx context.Context, e *domain.AgentError) error {
	query := `
		INSERT INTO agent_errors (owner_id, error_id, message_id, stage, code, user_message, detail)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
		RETURNING id, created_at`

	err := a.db.QueryRowxContext(ctx, query,
		e.OwnerID, e.ErrorID, e.MessageID, e.Stage, e.Code, e.UserMessage, e.Detail,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return mapError("agent_error.insert", "agent_error", err)
	}
	return nil
}

func (a *AgentErrorAdapter) ListRecent(ctx context.Context, ownerID uuid.UUID, limit int) ([]*domain.AgentError, error) {
	query := `
		SELECT id, owner_id, error_id, message_id, stage, code, user_message, detail, created_at
		FROM agent_errors
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var rows []agentErrorRow
	if err := a.db.SelectContext(ctx, &rows, query, ownerID, limit); err != nil {
		return nil, mapError("agent_error.list_recent", "agent_error", err)
	}

	errs := make([]*domain.AgentError, len(rows))
	for i := range rows {
		errs[i] = rows[i].toDomain()
	}
	return errs, nil
}
