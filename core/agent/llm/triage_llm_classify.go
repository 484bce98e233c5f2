package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"triage_server/core/domain"
	"triage_server/pkg/logger"
)

const classifySystemPrompt = `You are an inbox triage AI for a busy professional. Analyze the email and respond with JSON only.

relevance (pick ONE):
- SALES: an active deal conversation (buying or selling)
- BUSINESS: work correspondence that needs attention
- PERSONAL: friends, family, private matters
- OPPORTUNITY: inbound leads, partnership offers worth a look
- NOISE: bulk mail, notifications, anything ignorable

importance: CRITICAL | HIGH | REGULAR | LOW
type: EVENT (proposes a meeting) | TODO (asks for an action) | INFO (everything else)

For SALES/OPPORTUNITY also set:
  deal_type: buyer | seller   (which side the OWNER is on)
  deal_state: lead | negotiating | closing | idle

For EVENT set event_details: {"duration_minutes": N, "requested_time": "RFC3339 or null"}
For TODO set todo_details: {"description": "...", "urgency": "TODAY|TOMORROW|SOON"}

Respond with this exact JSON format:
{
  "relevance": "...",
  "importance": "...",
  "type": "...",
  "summary": "one sentence",
  "deal_type": "...",
  "deal_state": "...",
  "event_details": null,
  "todo_details": null
}`

// classifyResponse mirrors the model's JSON. Times arrive as strings
// so a bad timestamp degrades to "no requested time" instead of
// failing the whole parse.
type classifyResponse struct {
	Relevance  string `json:"relevance"`
	Importance string `json:"importance"`
	Type       string `json:"type"`
	Summary    string `json:"summary"`
	DealType   string `json:"deal_type"`
	DealState  string `json:"deal_state"`

	EventDetails *struct {
		DurationMinutes int    `json:"duration_minutes"`
		RequestedTime   string `json:"requested_time"`
	} `json:"event_details"`

	TodoDetails *struct {
		Description string `json:"description"`
		Urgency     string `json:"urgency"`
	} `json:"todo_details"`
}

// Classify produces a triage verdict for one message. Malformed model
// output is not an error: the safe default verdict is returned so the
// message still gets triaged as regular business mail.
func (c *Client) Classify(ctx context.Context, subject, body string) (domain.TriageVerdict, error) {
	userPrompt := fmt.Sprintf("Subject: %s\n\nBody:\n%s", subject, truncateBody(body, 4000))

	resp, err := c.CompleteWithSystem(ctx, classifySystemPrompt, userPrompt)
	if err != nil {
		return domain.DefaultVerdict(), err
	}

	return parseVerdict(resp), nil
}

func parseVerdict(resp string) domain.TriageVerdict {
	var parsed classifyResponse
	if err := json.Unmarshal([]byte(stripCodeFences(resp)), &parsed); err != nil {
		logger.WithError(err).Warn("unparseable classification response, using default verdict")
		return domain.DefaultVerdict()
	}

	verdict := domain.DefaultVerdict()
	verdict.Summary = parsed.Summary

	switch r := domain.Relevance(parsed.Relevance); r {
	case domain.RelevanceSales, domain.RelevanceBusiness, domain.RelevancePersonal,
		domain.RelevanceOpportunity, domain.RelevanceNoise:
		verdict.Relevance = r
	}

	switch i := domain.Importance(parsed.Importance); i {
	case domain.ImportanceCritical, domain.ImportanceHigh, domain.ImportanceRegular, domain.ImportanceLow:
		verdict.Importance = i
	}

	switch t := domain.MessageType(parsed.Type); t {
	case domain.TypeEvent, domain.TypeTodo, domain.TypeInfo:
		verdict.Type = t
	}

	if parsed.DealType == string(domain.DealTypeSeller) {
		verdict.DealType = domain.DealTypeSeller
	}
	switch s := domain.DealState(parsed.DealState); s {
	case domain.DealStateLead, domain.DealStateNegotiating, domain.DealStateClosing:
		verdict.DealState = s
	}

	if verdict.Type == domain.TypeEvent && parsed.EventDetails != nil {
		details := &domain.EventDetails{DurationMinutes: parsed.EventDetails.DurationMinutes}
		if ts, err := time.Parse(time.RFC3339, parsed.EventDetails.RequestedTime); err == nil {
			details.RequestedTime = &ts
		}
		verdict.EventDetails = details
	}

	if verdict.Type == domain.TypeTodo && parsed.TodoDetails != nil {
		urgency := domain.TodoUrgency(parsed.TodoDetails.Urgency)
		switch urgency {
		case domain.UrgencyToday, domain.UrgencyTomorrow, domain.UrgencySoon:
		default:
			urgency = domain.UrgencySoon
		}
		verdict.TodoDetails = &domain.TodoDetails{
			Description: parsed.TodoDetails.Description,
			Urgency:     urgency,
		}
	}

	return verdict
}
