package out

import (
	"context"
	"time"

	"triage_server/core/domain"
)

// CalendarProvider defines the outbound port for the owner's calendar.
type CalendarProvider interface {
	// ListBusy returns busy windows between from and to.
	ListBusy(ctx context.Context, owner *domain.Owner, from, to time.Time) ([]domain.CalendarWindow, error)

	// InsertHold creates a tentative hold event and returns its provider id.
	InsertHold(ctx context.Context, owner *domain.Owner, title string, start, end time.Time) (string, error)

	// ConfirmEvent flips a hold into a confirmed event.
	ConfirmEvent(ctx context.Context, owner *domain.Owner, providerEventID string) error

	// DeleteEvent removes a hold from the calendar.
	DeleteEvent(ctx context.Context, owner *domain.Owner, providerEventID string) error
}
