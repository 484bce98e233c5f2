package domain

import (
	"time"

	"github.com/google/uuid"
)

// Contact is a counterparty the mailbox owner corresponds with.
// (OwnerID, PrimaryIdentifier) is unique; contacts are created lazily on
// first message from an unseen address and never deleted by the core.
type Contact struct {
	ID      int64     `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`

	Name string `json:"name"`
	// PrimaryIdentifier is the lower-cased email address.
	PrimaryIdentifier string `json:"primary_identifier"`

	// Locations are named places associated with the contact
	// (property addresses, office), keyed by label.
	Locations map[string]string `json:"locations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
