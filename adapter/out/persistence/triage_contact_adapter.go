package persistence

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"triage_server/core/domain"
)

// ContactAdapter implements out.ContactRepository using PostgreSQL.
// (owner_id, primary_identifier) carries a unique constraint; the
// resolver relies on the duplicate error to converge under races.
type ContactAdapter struct {
	db *sqlx.DB
}

func NewContactAdapter(db *sqlx.DB) *ContactAdapter {
	return &ContactAdapter{db: db}
}

// contactRow represents the database row for contacts.
type contactRow struct {
	ID                int64     `db:"id"`
	OwnerID           uuid.UUID `db:"owner_id"`
	Name              string    `db:"name"`
	PrimaryIdentifier string    `db:"primary_identifier"`
	Locations         []byte    `db:"locations"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r *contactRow) toDomain() *domain.Contact {
	contact := &domain.Contact{
		ID:                r.ID,
		OwnerID:           r.OwnerID,
		Name:              r.Name,
		PrimaryIdentifier: r.PrimaryIdentifier,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if len(r.Locations) > 0 {
		_ = json.Unmarshal(r.Locations, &contact.Locations)
	}
	return contact
}

// Create inserts a new contact.
func (a *ContactAdapter) Create(ctx context.Context, contact *domain.Contact) error {
	locations := []byte("{}")
	if contact.Locations != nil {
		if b, err := json.Marshal(contact.Locations); err == nil {
			locations = b
		}
	}

	query := `
		INSERT INTO contacts (owner_id, name, primary_identifier, locations)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := a.db.QueryRowxContext(ctx, query,
		contact.OwnerID, contact.Name, contact.PrimaryIdentifier, locations,
	).Scan(&contact.ID, &contact.CreatedAt, &contact.UpdatedAt)
	if err != nil {
		return mapError("contact.create", "contact", err)
	}
	return nil
}

// GetByIdentifier finds a contact by its lower-cased identity key.
func (a *ContactAdapter) GetByIdentifier(ctx context.Context, ownerID uuid.UUID, identifier string) (*domain.Contact, error) {
	query := `
		SELECT id, owner_id, name, primary_identifier, locations, created_at, updated_at
		FROM contacts
		WHERE owner_id = $1 AND primary_identifier = $2`

	var row contactRow
	if err := a.db.GetContext(ctx, &row, query, ownerID, identifier); err != nil {
		return nil, mapError("contact.get_by_identifier", "contact", err)
	}
	return row.toDomain(), nil
}

// GetByID finds a contact by id.
func (a *ContactAdapter) GetByID(ctx context.Context, ownerID uuid.UUID, id int64) (*domain.Contact, error) {
	query := `
		SELECT id, owner_id, name, primary_identifier, locations, created_at, updated_at
		FROM contacts
		WHERE owner_id = $1 AND id = $2`

	var row contactRow
	if err := a.db.GetContext(ctx, &row, query, ownerID, id); err != nil {
		return nil, mapError("contact.get_by_id", "contact", err)
	}
	return row.toDomain(), nil
}

// Update rewrites the mutable fields of a contact.
func (a *ContactAdapter) Update(ctx context.Context, contact *domain.Contact) error {
	locations := []byte("{}")
	if contact.Locations != nil {
		if b, err := json.Marshal(contact.Locations); err == nil {
			locations = b
		}
	}

	query := `
		UPDATE contacts
		SET name = $1, locations = $2, updated_at = NOW()
		WHERE owner_id = $3 AND id = $4`

	result, err := a.db.ExecContext(ctx, query, contact.Name, locations, contact.OwnerID, contact.ID)
	if err != nil {
		return mapError("contact.update", "contact", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return mapError("contact.update", "contact", errNoRows)
	}
	return nil
}
