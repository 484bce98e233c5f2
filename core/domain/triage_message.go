package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is one ingested email. ID is derived deterministically from the
// provider's native message id, which makes re-ingestion of the same
// provider message a no-op rather than a duplicate row.
type Message struct {
	ID        string    `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	ContactID int64     `json:"contact_id"`

	Direction   Direction `json:"direction"`
	RawText     string    `json:"raw_text"`
	CleanedText string    `json:"cleaned_text"`
	Timestamp   time.Time `json:"timestamp"`

	// ThreadID is attached once, after thread resolution.
	ThreadID *int64 `json:"thread_id,omitempty"`
	// ExternalThreadID is the provider's own thread id, kept for reference.
	ExternalThreadID string `json:"external_thread_id,omitempty"`
}

// InboundEmail is the provider-shaped payload handed to the pipeline.
type InboundEmail struct {
	// ID is the internal deterministic id derived from ProviderID.
	ID         string
	ProviderID string
	ThreadID   string

	From      string
	Subject   string
	Timestamp time.Time

	RawText     string
	CleanedText string
}
