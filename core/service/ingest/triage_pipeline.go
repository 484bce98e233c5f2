package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/contact"
	"triage_server/core/service/schedule"
	"triage_server/core/service/triage"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
	"triage_server/pkg/messageid"
	"triage_server/pkg/retry"
)

// =============================================================================
// Triage Pipeline
// =============================================================================
//
// Per owner, messages are processed strictly sequentially, oldest
// first, each inside its own error boundary:
//   fetch -> clean -> contact -> dedupe by deterministic id -> classify
//   -> embed -> resolve thread -> refresh summary -> bump priority
//   -> schedule actions -> mark read
// A failed message is recorded and skipped; the run continues. Expired
// credentials abort the whole owner run since nothing else can succeed.

// RunReport summarizes one owner's triage run.
type RunReport struct {
	Fetched    int
	Triaged    int
	Merged     int
	Created    int
	Skipped    int
	Duplicates int
	Failed     int
	Elapsed    time.Duration
}

type Pipeline struct {
	mailbox    out.MailboxProvider
	messages   out.MessageRepository
	threads    out.ThreadRepository
	agentErrs  out.AgentErrorRepository
	contacts   *contact.Resolver
	classifier out.Classifier
	embedder   out.Embedder
	resolver   *triage.ThreadResolver
	refresher  *triage.SummaryRefresher
	scheduler  *schedule.Scheduler
	policy     retry.Policy
	maxPerRun  int
	clock      domain.Clock
	log        *logger.Logger
}

type PipelineConfig struct {
	MaxMessagesPerRun int
	RetryPolicy       retry.Policy
}

func NewPipeline(
	mailbox out.MailboxProvider,
	messages out.MessageRepository,
	threads out.ThreadRepository,
	agentErrs out.AgentErrorRepository,
	contacts *contact.Resolver,
	classifier out.Classifier,
	embedder out.Embedder,
	resolver *triage.ThreadResolver,
	refresher *triage.SummaryRefresher,
	scheduler *schedule.Scheduler,
	cfg PipelineConfig,
	clock domain.Clock,
) *Pipeline {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	maxPerRun := cfg.MaxMessagesPerRun
	if maxPerRun <= 0 {
		maxPerRun = 10
	}
	return &Pipeline{
		mailbox:    mailbox,
		messages:   messages,
		threads:    threads,
		agentErrs:  agentErrs,
		contacts:   contacts,
		classifier: classifier,
		embedder:   embedder,
		resolver:   resolver,
		refresher:  refresher,
		scheduler:  scheduler,
		policy:     cfg.RetryPolicy,
		maxPerRun:  maxPerRun,
		clock:      clock,
		log:        logger.WithField("component", "pipeline"),
	}
}

// RunOwner triages one owner's unread mail.
func (p *Pipeline) RunOwner(ctx context.Context, owner *domain.Owner) (*RunReport, error) {
	started := p.clock.Now()
	report := &RunReport{}
	log := p.log.WithField("owner_id", owner.ID.String())

	emails, err := retry.DoValue(ctx, p.policy, func() ([]*domain.InboundEmail, error) {
		return p.mailbox.ListUnread(ctx, owner, p.maxPerRun)
	})
	if err != nil {
		return nil, err
	}
	report.Fetched = len(emails)

	for _, email := range emails {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := p.processOne(ctx, owner, email, report); err != nil {
			report.Failed++
			p.recordFailure(ctx, owner, email, err)

			// nothing else can succeed without valid credentials
			if apperr.IsAuthExpired(err) {
				log.WithError(err).Warn("credentials expired, aborting owner run")
				report.Elapsed = p.clock.Now().Sub(started)
				return report, err
			}
			log.WithError(err).WithField("provider_id", email.ProviderID).Warn("message triage failed, continuing")
		}
	}

	report.Elapsed = p.clock.Now().Sub(started)
	log.WithFields(map[string]any{
		"fetched": report.Fetched,
		"triaged": report.Triaged,
		"merged":  report.Merged,
		"created": report.Created,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	}).Info("owner triage run finished")
	return report, nil
}

func (p *Pipeline) processOne(ctx context.Context, owner *domain.Owner, email *domain.InboundEmail, report *RunReport) error {
	msgID := messageid.FromProviderID(email.ProviderID)
	if msgID == "" {
		return apperr.BadPayload(email.ProviderID, nil)
	}

	cleaned := CleanBody(email.RawText)

	msg := &domain.Message{
		ID:               msgID,
		OwnerID:          owner.ID,
		Direction:        domain.DirectionInbound,
		RawText:          email.RawText,
		CleanedText:      cleaned,
		Timestamp:        email.Timestamp,
		ExternalThreadID: email.ThreadID,
	}

	contactRec, err := p.contacts.Resolve(ctx, owner.ID, email.From)
	if err != nil {
		return err
	}
	msg.ContactID = contactRec.ID

	inserted, err := p.messages.Insert(ctx, msg)
	if err != nil {
		return err
	}
	if !inserted {
		// replay of an already-triaged message: just clear the unread flag
		report.Duplicates++
		return p.markRead(ctx, owner, email)
	}

	verdict, err := retry.DoValue(ctx, p.policy, func() (domain.TriageVerdict, error) {
		return p.classifier.Classify(ctx, email.Subject, cleaned)
	})
	if err != nil {
		return err
	}

	var vector []float64
	if verdict.Relevance != domain.RelevanceNoise {
		vector, err = retry.DoValue(ctx, p.policy, func() ([]float64, error) {
			return p.embedder.Embed(ctx, cleaned)
		})
		if err != nil {
			// embedding outage leaves the message stored but unthreaded
			// instead of failing it; the resolver records the skip
			p.log.WithError(err).WithField("msg_id", msg.ID).Warn("embedding failed, message left unthreaded")
			vector = nil
		}
	}

	resolution, err := p.resolver.Resolve(ctx, owner, msg, email, vector, verdict, contactRec)
	if err != nil {
		return err
	}

	switch resolution.Outcome {
	case domain.OutcomeMerged:
		report.Merged++
	case domain.OutcomeCreated:
		report.Created++
	default:
		report.Skipped++
	}

	if resolution.Thread != nil {
		thread := resolution.Thread

		if err := p.messages.AssignThread(ctx, owner.ID, msg.ID, thread.ID); err != nil {
			return err
		}

		if resolution.Merged() {
			if _, err := p.refresher.Refresh(ctx, owner, thread); err != nil {
				return err
			}
		}

		score := triage.CombinedScore(thread.PriorityScore, verdict, thread.LastUpdated, p.clock.Now())
		if score != thread.PriorityScore {
			if err := p.threads.UpdatePriority(ctx, owner.ID, thread.ID, score); err != nil {
				return err
			}
			thread.PriorityScore = score
		}

		if owner.Settings.AutoScheduling {
			if _, err := p.scheduler.HandleVerdict(ctx, owner, thread, msg, verdict); err != nil {
				return err
			}
		}

		report.Triaged++
	}

	return p.markRead(ctx, owner, email)
}

func (p *Pipeline) markRead(ctx context.Context, owner *domain.Owner, email *domain.InboundEmail) error {
	return retry.Do(ctx, p.policy, func() error {
		return p.mailbox.MarkRead(ctx, owner, email.ProviderID)
	})
}

// recordFailure persists the per-message error. Best effort.
func (p *Pipeline) recordFailure(ctx context.Context, owner *domain.Owner, email *domain.InboundEmail, cause error) {
	if p.agentErrs == nil {
		return
	}
	code := apperr.CodeInternalError
	if ae := apperr.AsAppError(cause); ae != nil {
		code = ae.Code
	}
	rec := &domain.AgentError{
		OwnerID:     owner.ID,
		ErrorID:     newErrorID(),
		MessageID:   messageid.FromProviderID(email.ProviderID),
		Stage:       "ingest",
		Code:        code,
		UserMessage: userMessage(code),
		Detail:      cause.Error(),
		CreatedAt:   p.clock.Now(),
	}
	if err := p.agentErrs.Insert(ctx, rec); err != nil {
		p.log.WithError(err).Warn("failed to persist agent error")
	}
}

// newErrorID produces the short reference shown to the owner when a
// message fails, e.g. "A-4821".
func newErrorID() string {
	return fmt.Sprintf("A-%d", 1000+rand.Intn(9000))
}

// userMessage maps an error code to a short owner-safe explanation.
func userMessage(code string) string {
	switch code {
	case apperr.CodeAuthExpired:
		return "Email access expired."
	case apperr.CodeRateLimited, apperr.CodeTimeout, apperr.CodeUnavailable:
		return "Network connection failed."
	case apperr.CodeDatabaseError:
		return "Database error occurred."
	case apperr.CodeBadPayload:
		return "Message could not be read."
	default:
		return "Agent processing failed."
	}
}
