package schedule

import (
	"context"

	"github.com/google/uuid"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
)

// Action command names carried in signed links.
const (
	ActionCompleteTodo = "complete_todo"
	ActionConfirmEvent = "confirm_event"
	ActionDismissEvent = "dismiss_event"
)

// Actions executes the one-click commands embedded in brief emails.
type Actions struct {
	todos    out.TodoRepository
	events   out.EventRepository
	owners   out.OwnerRepository
	calendar out.CalendarProvider
	log      *logger.Logger
}

func NewActions(todos out.TodoRepository, events out.EventRepository, owners out.OwnerRepository, calendar out.CalendarProvider) *Actions {
	return &Actions{
		todos:    todos,
		events:   events,
		owners:   owners,
		calendar: calendar,
		log:      logger.WithField("component", "actions"),
	}
}

// Execute runs the named action for the owner. Unknown actions are a
// bad request, not an internal error.
func (a *Actions) Execute(ctx context.Context, ownerID uuid.UUID, action string, targetID int64) error {
	switch action {
	case ActionCompleteTodo:
		return a.completeTodo(ctx, ownerID, targetID)
	case ActionConfirmEvent:
		return a.confirmEvent(ctx, ownerID, targetID)
	case ActionDismissEvent:
		return a.dismissEvent(ctx, ownerID, targetID)
	default:
		return apperr.BadRequest("unknown action: " + action)
	}
}

func (a *Actions) completeTodo(ctx context.Context, ownerID uuid.UUID, id int64) error {
	if _, err := a.todos.GetByID(ctx, ownerID, id); err != nil {
		return err
	}
	return a.todos.Complete(ctx, ownerID, id)
}

func (a *Actions) confirmEvent(ctx context.Context, ownerID uuid.UUID, id int64) error {
	event, err := a.events.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if event.Status != domain.EventStatusHold {
		return apperr.Conflict("event is not on hold")
	}

	if event.CalendarEventID != "" {
		owner, err := a.owners.GetByID(ctx, ownerID)
		if err != nil {
			return err
		}
		if err := a.calendar.ConfirmEvent(ctx, owner, event.CalendarEventID); err != nil {
			return err
		}
	}
	return a.events.SetStatus(ctx, ownerID, id, domain.EventStatusConfirmed)
}

func (a *Actions) dismissEvent(ctx context.Context, ownerID uuid.UUID, id int64) error {
	event, err := a.events.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if event.Status == domain.EventStatusHold && event.CalendarEventID != "" {
		owner, err := a.owners.GetByID(ctx, ownerID)
		if err != nil {
			return err
		}
		if err := a.calendar.DeleteEvent(ctx, owner, event.CalendarEventID); err != nil {
			a.log.WithError(err).Warn("failed to remove calendar hold, dismissing anyway")
		}
	}
	return a.events.SetStatus(ctx, ownerID, id, domain.EventStatusDismissed)
}
