package triage

import (
	"context"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"
)

// =============================================================================
// Thread Resolver
// =============================================================================
//
// Given a cleaned inbound message, its embedding, and the classifier
// verdict, decide which conversation thread it belongs to:
//   1. Spam (NOISE verdict or keyword hit)   -> drop, no thread
//   2. Missing embedding                      -> drop, no thread
//   3. Best centroid similarity > threshold   -> merge into that thread
//   4. Otherwise                              -> create a new thread
// Every outcome is written to the decision log for audit.

const (
	// seed values for freshly created threads, replaced by the first
	// summary refresh
	summarySeedLen       = 500
	defaultPriorityScore = 5
)

// Resolution is the resolver's outcome for one message.
type Resolution struct {
	Thread  *domain.ConversationThread
	Outcome domain.DecisionOutcome
	Score   float64
}

// Merged reports whether the message landed in an existing thread.
func (r *Resolution) Merged() bool { return r.Outcome == domain.OutcomeMerged }

// Skipped reports whether the message was dropped without a thread.
func (r *Resolution) Skipped() bool { return r.Thread == nil }

type ThreadResolver struct {
	threads      out.ThreadRepository
	participants out.ParticipantRepository
	embeddings   out.EmbeddingRepository
	decisions    out.DecisionLog
	spam         *SpamFilter
	threshold    float64
	clock        domain.Clock
	log          *logger.Logger
}

func NewThreadResolver(
	threads out.ThreadRepository,
	participants out.ParticipantRepository,
	embeddings out.EmbeddingRepository,
	decisions out.DecisionLog,
	spam *SpamFilter,
	threshold float64,
	clock domain.Clock,
) *ThreadResolver {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &ThreadResolver{
		threads:      threads,
		participants: participants,
		embeddings:   embeddings,
		decisions:    decisions,
		spam:         spam,
		threshold:    threshold,
		clock:        clock,
		log:          logger.WithField("component", "thread_resolver"),
	}
}

// Resolve assigns msg to a thread. A nil Thread in the result means
// the message was deliberately dropped (spam or no embedding); that is
// not an error.
func (r *ThreadResolver) Resolve(
	ctx context.Context,
	owner *domain.Owner,
	msg *domain.Message,
	email *domain.InboundEmail,
	vector []float64,
	verdict domain.TriageVerdict,
	contact *domain.Contact,
) (*Resolution, error) {
	now := r.clock.Now()

	if owner.Settings.SpamFilterEnabled && r.spam.IsSpam(email.Subject, msg.CleanedText, verdict.Relevance) {
		r.record(ctx, owner, msg, domain.OutcomeSkippedSpam, nil, 0, 0, verdict.Relevance, "spam filter")
		return &Resolution{Outcome: domain.OutcomeSkippedSpam}, nil
	}

	if len(vector) == 0 {
		r.record(ctx, owner, msg, domain.OutcomeSkippedNoEmbed, nil, 0, 0, verdict.Relevance, "no embedding")
		return &Resolution{Outcome: domain.OutcomeSkippedNoEmbed}, nil
	}

	candidates, err := r.embeddings.ListForOwner(ctx, owner.ID)
	if err != nil {
		return nil, err
	}

	bestID, bestScore := bestMatch(vector, candidates)

	threshold := r.threshold
	if owner.Settings.SimilarityCutoff > 0 {
		threshold = owner.Settings.SimilarityCutoff
	}

	if bestID != 0 && bestScore > threshold {
		thread, err := r.merge(ctx, owner, msg, vector, bestID, now)
		if err != nil {
			return nil, err
		}
		if err := r.addParticipant(ctx, thread.ID, contact); err != nil {
			return nil, err
		}
		r.record(ctx, owner, msg, domain.OutcomeMerged, &thread.ID, bestScore, len(candidates), verdict.Relevance, "")
		return &Resolution{Thread: thread, Outcome: domain.OutcomeMerged, Score: bestScore}, nil
	}

	thread, err := r.create(ctx, owner, msg, contact, verdict, vector, now)
	if err != nil {
		return nil, err
	}
	if err := r.addParticipant(ctx, thread.ID, contact); err != nil {
		return nil, err
	}
	r.record(ctx, owner, msg, domain.OutcomeCreated, &thread.ID, bestScore, len(candidates), verdict.Relevance, "")
	return &Resolution{Thread: thread, Outcome: domain.OutcomeCreated, Score: bestScore}, nil
}

// bestMatch scans candidate centroids and returns the highest-scoring
// thread. Returns (0, 0) when there are no candidates.
func bestMatch(vector []float64, candidates []*out.ThreadEmbedding) (int64, float64) {
	var bestID int64
	var bestScore float64
	for _, c := range candidates {
		score := CosineSimilarity(vector, c.Vector)
		if score > bestScore {
			bestID = c.ThreadID
			bestScore = score
		}
	}
	return bestID, bestScore
}

func (r *ThreadResolver) merge(
	ctx context.Context,
	owner *domain.Owner,
	msg *domain.Message,
	vector []float64,
	threadID int64,
	now time.Time,
) (*domain.ConversationThread, error) {
	thread, err := r.threads.GetByID(ctx, owner.ID, threadID)
	if err != nil {
		return nil, err
	}

	if err := r.threads.Touch(ctx, owner.ID, threadID, now); err != nil {
		return nil, err
	}
	thread.LastUpdated = now

	// Shift the centroid toward the new message so the thread keeps
	// tracking its drifting topic.
	if existing, err := r.embeddings.Get(ctx, owner.ID, threadID); err == nil && existing != nil {
		blended := blendCentroid(existing.Vector, vector)
		if err := r.embeddings.Upsert(ctx, owner.ID, threadID, blended); err != nil {
			return nil, err
		}
	}

	r.log.WithFields(map[string]any{
		"owner_id":  owner.ID.String(),
		"thread_id": threadID,
		"msg_id":    msg.ID,
	}).Debug("merged message into thread")
	return thread, nil
}

func (r *ThreadResolver) create(
	ctx context.Context,
	owner *domain.Owner,
	msg *domain.Message,
	contact *domain.Contact,
	verdict domain.TriageVerdict,
	vector []float64,
	now time.Time,
) (*domain.ConversationThread, error) {
	thread := &domain.ConversationThread{
		OwnerID:       owner.ID,
		Topic:         seedTopic(contact),
		SummaryText:   seedSummary(msg.CleanedText, verdict.Summary),
		State:         domain.ThreadStateActive,
		PriorityScore: defaultPriorityScore,
		LastUpdated:   now,
		CreatedAt:     now,
	}
	if err := r.threads.Create(ctx, thread); err != nil {
		return nil, err
	}
	if err := r.embeddings.Upsert(ctx, owner.ID, thread.ID, vector); err != nil {
		return nil, err
	}

	r.log.WithFields(map[string]any{
		"owner_id":  owner.ID.String(),
		"thread_id": thread.ID,
	}).Debug("created new thread")
	return thread, nil
}

func (r *ThreadResolver) addParticipant(ctx context.Context, threadID int64, contact *domain.Contact) error {
	if contact == nil || contact.ID == 0 {
		return nil
	}
	return r.participants.Upsert(ctx, threadID, contact.ID)
}

// seedTopic names a fresh thread after the contact until the first
// summary refresh replaces it with a real subject.
func seedTopic(contact *domain.Contact) string {
	if contact != nil && contact.Name != "" {
		return "Conversation with " + contact.Name
	}
	return "New Thread"
}

// seedSummary takes a short prefix of the message body as the initial
// summary, falling back to the classifier's one-liner.
func seedSummary(text, fallback string) string {
	if text == "" {
		return fallback
	}
	if runes := []rune(text); len(runes) > summarySeedLen {
		return string(runes[:summarySeedLen]) + "..."
	}
	return text
}

// record writes the decision audit entry. Failures are logged and
// swallowed so auditing never blocks triage.
func (r *ThreadResolver) record(
	ctx context.Context,
	owner *domain.Owner,
	msg *domain.Message,
	outcome domain.DecisionOutcome,
	threadID *int64,
	score float64,
	candidates int,
	relevance domain.Relevance,
	reason string,
) {
	if r.decisions == nil {
		return
	}
	rec := &domain.DecisionRecord{
		OwnerID:       owner.ID,
		MessageID:     msg.ID,
		Outcome:       outcome,
		ThreadID:      threadID,
		BestScore:     score,
		Threshold:     r.threshold,
		CandidateSize: candidates,
		Relevance:     relevance,
		Reason:        reason,
		DecidedAt:     r.clock.Now(),
	}
	if err := r.decisions.Record(ctx, rec); err != nil {
		r.log.WithError(err).Warn("failed to record triage decision")
	}
}

// blendCentroid averages the existing centroid with the new vector.
// Mismatched dimensions keep the new vector as is.
func blendCentroid(old, next []float64) []float64 {
	if len(old) != len(next) {
		return next
	}
	blended := make([]float64, len(next))
	for i := range next {
		blended[i] = (old[i] + next[i]) / 2
	}
	return blended
}
