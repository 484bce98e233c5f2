// Package contact resolves sender addresses to contact records.
package contact

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
)

// Resolver maps a From header onto exactly one contact per owner.
// Resolution is idempotent: the same address always converges on the
// same record, including under concurrent creation races.
type Resolver struct {
	contacts out.ContactRepository
	log      *logger.Logger
}

func NewResolver(contacts out.ContactRepository) *Resolver {
	return &Resolver{
		contacts: contacts,
		log:      logger.WithField("component", "contact_resolver"),
	}
}

// Resolve finds or creates the contact for fromHeader. The email
// address, lower-cased, is the identity key; display names only seed
// the name of a newly created record.
func (r *Resolver) Resolve(ctx context.Context, ownerID uuid.UUID, fromHeader string) (*domain.Contact, error) {
	name, email := ParseAddress(fromHeader)
	if email == "" {
		return nil, apperr.BadPayload("", nil).WithDetail("from", fromHeader)
	}

	existing, err := r.contacts.GetByIdentifier(ctx, ownerID, email)
	if err == nil && existing != nil {
		return existing, nil
	}
	if err != nil && !apperr.IsAppError(err) {
		return nil, err
	}
	if ae := apperr.AsAppError(err); ae != nil && ae.Code != apperr.CodeNotFound {
		return nil, err
	}

	contact := &domain.Contact{
		OwnerID:           ownerID,
		Name:              name,
		PrimaryIdentifier: email,
	}
	if contact.Name == "" {
		contact.Name = "Unknown"
	}

	if err := r.contacts.Create(ctx, contact); err != nil {
		// A concurrent triage run may have created the same contact
		// between our lookup and insert. The unique key makes the
		// re-read authoritative.
		if apperr.IsDuplicate(err) {
			return r.contacts.GetByIdentifier(ctx, ownerID, email)
		}
		return nil, err
	}

	r.log.WithFields(map[string]any{
		"owner_id": ownerID.String(),
		"email":    email,
	}).Debug("created contact")
	return contact, nil
}

// ParseAddress splits an RFC-ish From header into display name and
// lower-cased address. Handles "Name <a@b>", "<a@b>", and bare "a@b".
func ParseAddress(header string) (name, email string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ""
	}

	if open := strings.LastIndex(header, "<"); open >= 0 {
		close_ := strings.LastIndex(header, ">")
		if close_ > open {
			email = strings.ToLower(strings.TrimSpace(header[open+1 : close_]))
			name = strings.Trim(strings.TrimSpace(header[:open]), `"`)
			return name, email
		}
	}

	if strings.Contains(header, "@") {
		return "", strings.ToLower(header)
	}
	return header, ""
}
