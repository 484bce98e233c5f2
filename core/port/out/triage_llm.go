package out

import (
	"context"

	"triage_server/core/domain"
)

// Classifier produces a structured triage verdict for one message.
type Classifier interface {
	Classify(ctx context.Context, subject, body string) (domain.TriageVerdict, error)
}

// Summarizer refreshes a thread summary given the prior summary and
// the conversation transcript, oldest message first.
type Summarizer interface {
	RefreshSummary(ctx context.Context, prior domain.ThreadSummary, transcript string) (domain.ThreadSummary, error)
}

// Embedder turns cleaned message text into a vector. Returns nil for
// text too short to embed meaningfully.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
