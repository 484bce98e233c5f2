// Package report builds and delivers the morning brief email.
package report

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/schedule"
	"triage_server/pkg/logger"
	"triage_server/pkg/security"
)

// =============================================================================
// Morning Brief
// =============================================================================
//
// One HTML email per owner, sent to their own address:
//   - Headlines: up to 3 threads with priority >= headlineCutoff
//   - Today's holds and upcoming events
//   - Open todos, each with a signed one-click complete link
//   - Remaining active threads, highest priority first

const (
	headlineCutoff = 8
	headlineCount  = 3
	threadCount    = 10
	eventHorizon   = 48 * time.Hour
)

type BriefBuilder struct {
	threads out.ThreadRepository
	todos   out.TodoRepository
	events  out.EventRepository
	mailbox out.MailboxProvider
	signer  *security.Signer
	baseURL string
	clock   domain.Clock
	log     *logger.Logger
}

func NewBriefBuilder(
	threads out.ThreadRepository,
	todos out.TodoRepository,
	events out.EventRepository,
	mailbox out.MailboxProvider,
	signer *security.Signer,
	baseURL string,
	clock domain.Clock,
) *BriefBuilder {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &BriefBuilder{
		threads: threads,
		todos:   todos,
		events:  events,
		mailbox: mailbox,
		signer:  signer,
		baseURL: baseURL,
		clock:   clock,
		log:     logger.WithField("component", "morning_brief"),
	}
}

// SendBrief builds and mails the brief. Owners with briefs disabled
// are skipped silently.
func (b *BriefBuilder) SendBrief(ctx context.Context, owner *domain.Owner) error {
	if !owner.Settings.BriefEnabled {
		return nil
	}

	body, empty, err := b.Build(ctx, owner)
	if err != nil {
		return err
	}
	if empty {
		b.log.WithField("owner_id", owner.ID.String()).Debug("nothing to brief, skipping send")
		return nil
	}

	subject := "Your triage brief for " + b.clock.Now().Format("Mon, Jan 2")
	return b.mailbox.Send(ctx, owner, owner.Email, subject, body)
}

// Build renders the brief HTML. empty is true when there is nothing
// worth sending.
func (b *BriefBuilder) Build(ctx context.Context, owner *domain.Owner) (body string, empty bool, err error) {
	now := b.clock.Now()

	threads, err := b.threads.ListTop(ctx, owner.ID, threadCount)
	if err != nil {
		return "", false, err
	}
	todos, err := b.todos.ListOpen(ctx, owner.ID)
	if err != nil {
		return "", false, err
	}
	events, err := b.events.ListUpcoming(ctx, owner.ID, now, 10)
	if err != nil {
		return "", false, err
	}

	var upcoming []*domain.ScheduledEvent
	for _, e := range events {
		if e.Status != domain.EventStatusDismissed && e.Start.Before(now.Add(eventHorizon)) {
			upcoming = append(upcoming, e)
		}
	}

	if len(threads) == 0 && len(todos) == 0 && len(upcoming) == 0 {
		return "", true, nil
	}

	var sb strings.Builder
	sb.WriteString(`<html><body style="font-family:sans-serif;max-width:640px">`)
	sb.WriteString("<h2>Good morning</h2>")

	b.writeHeadlines(&sb, threads)
	b.writeEvents(&sb, owner, upcoming, now)
	b.writeTodos(&sb, owner, todos, now)
	b.writeThreads(&sb, threads)

	sb.WriteString("</body></html>")
	return sb.String(), false, nil
}

func (b *BriefBuilder) writeHeadlines(sb *strings.Builder, threads []*domain.ConversationThread) {
	var headlines []*domain.ConversationThread
	for _, t := range threads {
		if t.PriorityScore >= headlineCutoff {
			headlines = append(headlines, t)
		}
		if len(headlines) == headlineCount {
			break
		}
	}
	if len(headlines) == 0 {
		return
	}

	sb.WriteString("<h3>Needs your attention</h3><ul>")
	for _, t := range headlines {
		fmt.Fprintf(sb, "<li><b>%s</b> — %s</li>",
			html.EscapeString(t.Topic), html.EscapeString(t.SummaryText))
	}
	sb.WriteString("</ul>")
}

func (b *BriefBuilder) writeEvents(sb *strings.Builder, owner *domain.Owner, events []*domain.ScheduledEvent, now time.Time) {
	if len(events) == 0 {
		return
	}
	sb.WriteString("<h3>On your calendar</h3><ul>")
	for _, e := range events {
		fmt.Fprintf(sb, "<li>%s — %s", e.Start.Format("Mon 15:04"), html.EscapeString(e.Title))
		if e.Status == domain.EventStatusHold {
			confirm := b.signer.ActionURL(b.baseURL, owner.ID.String(), schedule.ActionConfirmEvent, fmt.Sprintf("%d", e.ID), now.UnixMilli())
			dismiss := b.signer.ActionURL(b.baseURL, owner.ID.String(), schedule.ActionDismissEvent, fmt.Sprintf("%d", e.ID), now.UnixMilli())
			fmt.Fprintf(sb, ` &nbsp;<a href="%s">confirm</a> · <a href="%s">dismiss</a>`, confirm, dismiss)
		}
		sb.WriteString("</li>")
	}
	sb.WriteString("</ul>")
}

func (b *BriefBuilder) writeTodos(sb *strings.Builder, owner *domain.Owner, todos []*domain.TodoItem, now time.Time) {
	if len(todos) == 0 {
		return
	}
	sb.WriteString("<h3>Open todos</h3><ul>")
	for _, todo := range todos {
		link := b.signer.ActionURL(b.baseURL, owner.ID.String(), schedule.ActionCompleteTodo, fmt.Sprintf("%d", todo.ID), now.UnixMilli())
		fmt.Fprintf(sb, `<li>%s (due %s) &nbsp;<a href="%s">done</a></li>`,
			html.EscapeString(todo.Description), todo.DueDate.Format("Jan 2"), link)
	}
	sb.WriteString("</ul>")
}

func (b *BriefBuilder) writeThreads(sb *strings.Builder, threads []*domain.ConversationThread) {
	if len(threads) == 0 {
		return
	}
	sb.WriteString("<h3>Active conversations</h3><ul>")
	for _, t := range threads {
		fmt.Fprintf(sb, "<li>%s <small>(%s)</small></li>",
			html.EscapeString(t.Topic), t.LastUpdated.Format("Jan 2"))
	}
	sb.WriteString("</ul>")
}
