package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"triage_server/core/domain"
)

const summarizeSystemPrompt = `You summarize an email conversation thread for a busy professional. Given the thread's current topic and summary plus the conversation transcript, produce an updated topic and summary.

The topic must be a concise, actionable title for the conversation: prefer a deal name, address, or critical subject over generic titles like "Conversation with X". The summary must be synthesized, not copied verbatim, under 3 sentences, and must emphasize the current status over history.

Respond with this exact JSON format:
{
  "topic": "...",
  "summary_text": "..."
}`

type summaryResponse struct {
	Topic       string `json:"topic"`
	SummaryText string `json:"summary_text"`
}

// RefreshSummary rebuilds the thread summary from the transcript.
// Unparseable model output falls back to keeping the prior topic with
// the raw model response as the summary.
func (c *Client) RefreshSummary(ctx context.Context, prior domain.ThreadSummary, transcript string) (domain.ThreadSummary, error) {
	userPrompt := fmt.Sprintf(
		"Current topic: %s\nCurrent summary: %s\n\nConversation:\n%s",
		prior.Topic, prior.SummaryText, truncateBody(transcript, 8000),
	)

	resp, err := c.CompleteWithSystem(ctx, summarizeSystemPrompt, userPrompt)
	if err != nil {
		return domain.ThreadSummary{}, err
	}

	var parsed summaryResponse
	if err := json.Unmarshal([]byte(stripCodeFences(resp)), &parsed); err != nil || parsed.SummaryText == "" {
		return domain.ThreadSummary{Topic: prior.Topic, SummaryText: strings.TrimSpace(resp)}, nil
	}

	summary := domain.ThreadSummary{Topic: parsed.Topic, SummaryText: parsed.SummaryText}
	if summary.Topic == "" {
		summary.Topic = prior.Topic
	}
	return summary, nil
}
