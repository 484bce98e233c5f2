package domain

import (
	"time"

	"github.com/google/uuid"
)

type TodoStatus string

const (
	TodoStatusOpen TodoStatus = "open"
	TodoStatusDone TodoStatus = "done"
)

// TodoItem is an actionable task extracted from a triaged message.
// Deduplicated per owner by normalized description.
type TodoItem struct {
	ID          int64       `json:"id"`
	OwnerID     uuid.UUID   `json:"owner_id"`
	ThreadID    *int64      `json:"thread_id,omitempty"`
	Description string      `json:"description"`
	Urgency     TodoUrgency `json:"urgency"`
	DueDate     time.Time   `json:"due_date"`
	Status      TodoStatus  `json:"status"`
	SourceMsgID string      `json:"source_msg_id"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// DueDateFor resolves an urgency class to a concrete due date.
func DueDateFor(urgency TodoUrgency, now time.Time) time.Time {
	switch urgency {
	case UrgencyToday:
		return now
	case UrgencyTomorrow:
		return now.AddDate(0, 0, 1)
	default:
		return now.AddDate(0, 0, 3)
	}
}
