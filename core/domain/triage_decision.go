package domain

import (
	"time"

	"github.com/google/uuid"
)

// DecisionOutcome is the terminal outcome of triaging one message.
type DecisionOutcome string

const (
	OutcomeMerged            DecisionOutcome = "merged"
	OutcomeCreated           DecisionOutcome = "created"
	OutcomeSkippedSpam       DecisionOutcome = "skipped_spam"
	OutcomeSkippedNoEmbed    DecisionOutcome = "skipped_no_embedding"
	OutcomeSkippedDuplicate  DecisionOutcome = "skipped_duplicate"
	OutcomeError             DecisionOutcome = "error"
)

// DecisionRecord is an audit entry describing why a message landed in
// a thread (or did not). Written to the decision log per message.
type DecisionRecord struct {
	OwnerID       uuid.UUID       `bson:"owner_id" json:"owner_id"`
	MessageID     string          `bson:"message_id" json:"message_id"`
	Outcome       DecisionOutcome `bson:"outcome" json:"outcome"`
	ThreadID      *int64          `bson:"thread_id,omitempty" json:"thread_id,omitempty"`
	BestScore     float64         `bson:"best_score" json:"best_score"`
	Threshold     float64         `bson:"threshold" json:"threshold"`
	CandidateSize int             `bson:"candidate_size" json:"candidate_size"`
	Relevance     Relevance       `bson:"relevance,omitempty" json:"relevance,omitempty"`
	Reason        string          `bson:"reason,omitempty" json:"reason,omitempty"`
	DecidedAt     time.Time       `bson:"decided_at" json:"decided_at"`
}

// AgentError is a persisted per-message failure captured by the
// ingestion error boundary, keyed for later inspection.
type AgentError struct {
	ID      int64     `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`

	// ErrorID is the short reference ("A-1234") surfaced to the owner.
	ErrorID   string `json:"error_id"`
	MessageID string `json:"message_id,omitempty"`
	Stage     string `json:"stage"`
	Code      string `json:"code"`
	// UserMessage is safe to show the owner; Detail is internal.
	UserMessage string    `json:"user_message"`
	Detail      string    `json:"detail"`
	CreatedAt   time.Time `json:"created_at"`
}
