package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConversationThread is a merged, ongoing topic of conversation with one
// or more contacts. Only active threads are eligible merge targets.
type ConversationThread struct {
	ID      int64     `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`

	Topic       string      `json:"topic"`
	SummaryText string      `json:"summary_text"`
	State       ThreadState `json:"state"`

	// PriorityScore is derived from triage verdicts, never authoritative input.
	PriorityScore int `json:"priority_score"`

	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

// ThreadParticipant joins a contact to a thread. (ThreadID, ContactID)
// is unique; inserts are upserts.
type ThreadParticipant struct {
	ThreadID  int64     `json:"thread_id"`
	ContactID int64     `json:"contact_id"`
	AddedAt   time.Time `json:"added_at"`
}

// ThreadSummary is the summarizer's structured refresh result.
type ThreadSummary struct {
	Topic       string `json:"topic"`
	SummaryText string `json:"summary_text"`
}
