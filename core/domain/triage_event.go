package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventStatusHold      EventStatus = "hold"
	EventStatusConfirmed EventStatus = "confirmed"
	EventStatusDismissed EventStatus = "dismissed"
)

// ScheduledEvent is a calendar hold or suggestion produced by the
// action scheduler for an EVENT-type verdict.
type ScheduledEvent struct {
	ID              int64       `json:"id"`
	OwnerID         uuid.UUID   `json:"owner_id"`
	ThreadID        *int64      `json:"thread_id,omitempty"`
	Title           string      `json:"title"`
	Start           time.Time   `json:"start"`
	End             time.Time   `json:"end"`
	Status          EventStatus `json:"status"`
	CalendarEventID string      `json:"calendar_event_id,omitempty"`
	SourceMsgID     string      `json:"source_msg_id"`
	CreatedAt       time.Time   `json:"created_at"`
}

// SlotSuggestion is one free window offered when the requested time
// is busy. At most a few are proposed per event.
type SlotSuggestion struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CalendarWindow is an existing busy interval on the owner's calendar.
type CalendarWindow struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end) intersects the window.
func (w CalendarWindow) Overlaps(start, end time.Time) bool {
	return start.Before(w.End) && w.Start.Before(end)
}
