package triage

import (
	"context"
	"strings"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"
)

// transcriptMaxMessages bounds how much history the summarizer sees.
const transcriptMaxMessages = 50

// SummaryRefresher rebuilds a thread's topic and summary from its
// message transcript after every merge. LLM failures degrade
// gracefully: the thread keeps its prior topic and the latest message
// text stands in for the summary.
type SummaryRefresher struct {
	summarizer out.Summarizer
	threads    out.ThreadRepository
	messages   out.MessageRepository
	maxChars   int
	log        *logger.Logger
}

func NewSummaryRefresher(
	summarizer out.Summarizer,
	threads out.ThreadRepository,
	messages out.MessageRepository,
	maxChars int,
) *SummaryRefresher {
	return &SummaryRefresher{
		summarizer: summarizer,
		threads:    threads,
		messages:   messages,
		maxChars:   maxChars,
		log:        logger.WithField("component", "summary_refresher"),
	}
}

// Refresh loads the thread's transcript oldest-first, summarizes it,
// and persists the result. A thread with no messages is left alone.
// Returns the summary actually stored.
func (s *SummaryRefresher) Refresh(
	ctx context.Context,
	owner *domain.Owner,
	thread *domain.ConversationThread,
) (domain.ThreadSummary, error) {
	prior := domain.ThreadSummary{Topic: thread.Topic, SummaryText: thread.SummaryText}

	msgs, err := s.messages.ListByThread(ctx, owner.ID, thread.ID, transcriptMaxMessages)
	if err != nil {
		return domain.ThreadSummary{}, err
	}
	if len(msgs) == 0 {
		return prior, nil
	}

	transcript := buildTranscript(msgs)
	if s.maxChars > 0 && len(transcript) > s.maxChars {
		// keep the tail: the newest messages matter most
		transcript = transcript[len(transcript)-s.maxChars:]
	}

	summary, err := s.summarizer.RefreshSummary(ctx, prior, transcript)
	if err != nil {
		s.log.WithError(err).WithField("thread_id", thread.ID).Warn("summary refresh failed, using fallback")
		summary = fallbackSummary(prior, msgs[len(msgs)-1].CleanedText)
	}
	if summary.Topic == "" {
		summary.Topic = prior.Topic
	}

	if err := s.threads.UpdateSummary(ctx, owner.ID, thread.ID, summary); err != nil {
		return domain.ThreadSummary{}, err
	}
	thread.Topic = summary.Topic
	thread.SummaryText = summary.SummaryText
	return summary, nil
}

// buildTranscript flattens the thread into "who: text" lines, oldest
// first, so the summarizer sees the conversation in order.
func buildTranscript(msgs []*domain.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		if m.Direction == domain.DirectionOutbound {
			b.WriteString("Owner: ")
		} else {
			b.WriteString("Contact: ")
		}
		b.WriteString(m.CleanedText)
	}
	return b.String()
}

// fallbackSummary keeps the prior topic and substitutes the latest
// message text when the model response is unusable.
func fallbackSummary(prior domain.ThreadSummary, latest string) domain.ThreadSummary {
	return domain.ThreadSummary{Topic: prior.Topic, SummaryText: seedSummary(latest, prior.SummaryText)}
}
