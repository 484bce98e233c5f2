package provider

import (
	"context"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/httputil"
	"triage_server/pkg/logger"
)

// =============================================================================
// Google Calendar Adapter
// =============================================================================

// CalendarAdapter implements out.CalendarProvider using the owner's
// primary Google calendar.
type CalendarAdapter struct {
	config *oauth2.Config
	log    *logger.Logger
}

func NewCalendarAdapter(cfg *GoogleConfig) *CalendarAdapter {
	return &CalendarAdapter{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{calendar.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		},
		log: logger.WithField("component", "calendar_adapter"),
	}
}

func (a *CalendarAdapter) getService(ctx context.Context, owner *domain.Owner) (*calendar.Service, error) {
	if owner.RefreshToken == "" {
		return nil, apperr.AuthExpired(owner.Email)
	}

	// Route token refresh and API calls through the pooled client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httputil.GoogleClient())

	token := &oauth2.Token{RefreshToken: owner.RefreshToken}
	return calendar.NewService(ctx, option.WithTokenSource(a.config.TokenSource(ctx, token)))
}

// ListBusy returns the owner's busy windows via the freebusy API.
func (a *CalendarAdapter) ListBusy(ctx context.Context, owner *domain.Owner, from, to time.Time) ([]domain.CalendarWindow, error) {
	svc, err := a.getService(ctx, owner)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: "primary"}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, a.wrapError(owner, err)
	}

	var windows []domain.CalendarWindow
	for _, cal := range resp.Calendars {
		for _, period := range cal.Busy {
			start, err1 := time.Parse(time.RFC3339, period.Start)
			end, err2 := time.Parse(time.RFC3339, period.End)
			if err1 != nil || err2 != nil {
				continue
			}
			windows = append(windows, domain.CalendarWindow{Start: start, End: end})
		}
	}
	return windows, nil
}

// InsertHold creates a tentative event and returns its id.
func (a *CalendarAdapter) InsertHold(ctx context.Context, owner *domain.Owner, title string, start, end time.Time) (string, error) {
	svc, err := a.getService(ctx, owner)
	if err != nil {
		return "", err
	}

	event, err := svc.Events.Insert("primary", &calendar.Event{
		Summary: title,
		Status:  "tentative",
		Start:   &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}).Context(ctx).Do()
	if err != nil {
		return "", a.wrapError(owner, err)
	}
	return event.Id, nil
}

// ConfirmEvent flips a tentative hold to confirmed.
func (a *CalendarAdapter) ConfirmEvent(ctx context.Context, owner *domain.Owner, providerEventID string) error {
	svc, err := a.getService(ctx, owner)
	if err != nil {
		return err
	}

	_, err = svc.Events.Patch("primary", providerEventID, &calendar.Event{
		Status: "confirmed",
	}).Context(ctx).Do()
	if err != nil {
		return a.wrapError(owner, err)
	}
	return nil
}

// DeleteEvent removes a hold from the calendar.
func (a *CalendarAdapter) DeleteEvent(ctx context.Context, owner *domain.Owner, providerEventID string) error {
	svc, err := a.getService(ctx, owner)
	if err != nil {
		return err
	}

	if err := svc.Events.Delete("primary", providerEventID).Context(ctx).Do(); err != nil {
		return a.wrapError(owner, err)
	}
	return nil
}

func (a *CalendarAdapter) wrapError(owner *domain.Owner, err error) error {
	if err == nil {
		return nil
	}

	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case 401:
			return apperr.AuthExpired(owner.Email)
		case 404:
			return apperr.NotFound("calendar event")
		case 429:
			return apperr.RateLimited("calendar", err)
		case 500, 502, 503:
			return apperr.Unavailable("calendar", err)
		}
	}
	if strings.Contains(err.Error(), "invalid_grant") {
		return apperr.AuthExpired(owner.Email)
	}
	return apperr.ExternalError("calendar", err)
}

var _ out.CalendarProvider = (*CalendarAdapter)(nil)
