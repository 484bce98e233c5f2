package out

import (
	"context"

	"triage_server/core/domain"
)

// MailboxProvider defines the outbound port for the owner's mailbox.
type MailboxProvider interface {
	// ListUnread returns up to max unread inbound messages, oldest first.
	ListUnread(ctx context.Context, owner *domain.Owner, max int) ([]*domain.InboundEmail, error)

	// GetMessage fetches a single message by provider id.
	GetMessage(ctx context.Context, owner *domain.Owner, providerID string) (*domain.InboundEmail, error)

	// MarkRead removes the unread marker after successful triage.
	MarkRead(ctx context.Context, owner *domain.Owner, providerID string) error

	// Send delivers a message from the owner's own address.
	Send(ctx context.Context, owner *domain.Owner, to, subject, htmlBody string) error
}
