package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"triage_server/core/domain"
	"triage_server/pkg/logger"
)

// OwnerAdapter implements out.OwnerRepository using PostgreSQL.
type OwnerAdapter struct {
	db *sqlx.DB
}

func NewOwnerAdapter(db *sqlx.DB) *OwnerAdapter {
	return &OwnerAdapter{db: db}
}

type ownerRow struct {
	ID           uuid.UUID      `db:"id"`
	Email        string         `db:"email"`
	DisplayName  sql.NullString `db:"display_name"`
	RefreshToken sql.NullString `db:"refresh_token"`
	Settings     []byte         `db:"settings"`
	IsActive     bool           `db:"is_active"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *ownerRow) toDomain() *domain.Owner {
	owner := &domain.Owner{
		ID:        r.ID,
		Email:     r.Email,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.DisplayName.Valid {
		owner.DisplayName = r.DisplayName.String
	}
	if r.RefreshToken.Valid {
		owner.RefreshToken = r.RefreshToken.String
	}

	settings, err := domain.ParseOwnerSettings(r.Settings)
	if err != nil {
		logger.WithError(err).WithField("owner_id", r.ID.String()).Warn("bad owner settings, using defaults")
	}
	owner.Settings = settings
	return owner
}

const ownerColumns = `id, email, display_name, refresh_token, settings, is_active, created_at, updated_at`

func (a *OwnerAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE id = $1`

	var row ownerRow
	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, mapError("owner.get_by_id", "owner", err)
	}
	return row.toDomain(), nil
}

// ListActive returns owners enrolled for triage runs.
func (a *OwnerAdapter) ListActive(ctx context.Context) ([]*domain.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE is_active ORDER BY created_at ASC`

	var rows []ownerRow
	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, mapError("owner.list_active", "owner", err)
	}

	owners := make([]*domain.Owner, len(rows))
	for i := range rows {
		owners[i] = rows[i].toDomain()
	}
	return owners, nil
}

// UpdateSettings merges the typed settings over the stored blob so
// fields this build does not know about survive the write.
func (a *OwnerAdapter) UpdateSettings(ctx context.Context, id uuid.UUID, settings domain.OwnerSettings) error {
	merged, err := mergeSettings(settings)
	if err != nil {
		return err
	}

	query := `UPDATE owners SET settings = $1, updated_at = NOW() WHERE id = $2`

	result, err := a.db.ExecContext(ctx, query, merged, id)
	if err != nil {
		return mapError("owner.update_settings", "owner", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return mapError("owner.update_settings", "owner", errNoRows)
	}
	return nil
}

func mergeSettings(settings domain.OwnerSettings) ([]byte, error) {
	typed, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}
	if len(settings.Raw) == 0 {
		return typed, nil
	}

	var base map[string]any
	if err := json.Unmarshal(settings.Raw, &base); err != nil {
		return typed, nil
	}
	var overlay map[string]any
	if err := json.Unmarshal(typed, &overlay); err != nil {
		return typed, nil
	}
	for k, v := range overlay {
		base[k] = v
	}
	return json.Marshal(base)
}
