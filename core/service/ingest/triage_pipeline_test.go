package ingest

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/contact"
	"triage_server/core/service/schedule"
	"triage_server/core/service/triage"
	"triage_server/pkg/apperr"
	"triage_server/pkg/retry"
)

// ----------------------------------------------------------------------------
// Fakes
// ----------------------------------------------------------------------------

type fakeMailbox struct {
	unread   []*domain.InboundEmail
	read     []string
	sent     []string
	listErr  error
}

func (f *fakeMailbox) ListUnread(_ context.Context, _ *domain.Owner, max int) ([]*domain.InboundEmail, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.unread) > max {
		return f.unread[:max], nil
	}
	return f.unread, nil
}

func (f *fakeMailbox) GetMessage(_ context.Context, _ *domain.Owner, id string) (*domain.InboundEmail, error) {
	for _, e := range f.unread {
		if e.ProviderID == id {
			return e, nil
		}
	}
	return nil, apperr.NotFound("message")
}

func (f *fakeMailbox) MarkRead(_ context.Context, _ *domain.Owner, id string) error {
	f.read = append(f.read, id)
	return nil
}

func (f *fakeMailbox) Send(_ context.Context, _ *domain.Owner, to, subject, _ string) error {
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

type fakeMessageRepo struct {
	byID    map[string]*domain.Message
	threads map[string]int64
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{byID: make(map[string]*domain.Message), threads: make(map[string]int64)}
}

func (f *fakeMessageRepo) Insert(_ context.Context, m *domain.Message) (bool, error) {
	if _, ok := f.byID[m.ID]; ok {
		return false, nil
	}
	cp := *m
	f.byID[m.ID] = &cp
	return true, nil
}

func (f *fakeMessageRepo) GetByID(_ context.Context, _ uuid.UUID, id string) (*domain.Message, error) {
	m, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("message")
	}
	return m, nil
}

func (f *fakeMessageRepo) AssignThread(_ context.Context, _ uuid.UUID, msgID string, threadID int64) error {
	f.threads[msgID] = threadID
	return nil
}

func (f *fakeMessageRepo) ListByThread(_ context.Context, _ uuid.UUID, threadID int64, _ int) ([]*domain.Message, error) {
	var res []*domain.Message
	for id, tid := range f.threads {
		if tid == threadID {
			res = append(res, f.byID[id])
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	return res, nil
}

type fakeThreadRepo struct {
	threads map[int64]*domain.ConversationThread
	nextID  int64
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{threads: make(map[int64]*domain.ConversationThread), nextID: 1}
}

func (f *fakeThreadRepo) Create(_ context.Context, t *domain.ConversationThread) error {
	t.ID = f.nextID
	f.nextID++
	cp := *t
	f.threads[t.ID] = &cp
	return nil
}

func (f *fakeThreadRepo) GetByID(_ context.Context, _ uuid.UUID, id int64) (*domain.ConversationThread, error) {
	t, ok := f.threads[id]
	if !ok {
		return nil, apperr.NotFound("thread")
	}
	cp := *t
	return &cp, nil
}

func (f *fakeThreadRepo) ListActive(_ context.Context, _ uuid.UUID) ([]*domain.ConversationThread, error) {
	var res []*domain.ConversationThread
	for _, t := range f.threads {
		res = append(res, t)
	}
	return res, nil
}

func (f *fakeThreadRepo) ListTop(_ context.Context, _ uuid.UUID, _ int) ([]*domain.ConversationThread, error) {
	return f.ListActive(context.Background(), uuid.Nil)
}

func (f *fakeThreadRepo) UpdateSummary(_ context.Context, _ uuid.UUID, id int64, s domain.ThreadSummary) error {
	f.threads[id].Topic = s.Topic
	f.threads[id].SummaryText = s.SummaryText
	return nil
}

func (f *fakeThreadRepo) UpdatePriority(_ context.Context, _ uuid.UUID, id int64, score int) error {
	f.threads[id].PriorityScore = score
	return nil
}

func (f *fakeThreadRepo) Touch(_ context.Context, _ uuid.UUID, id int64, at time.Time) error {
	f.threads[id].LastUpdated = at
	return nil
}

func (f *fakeThreadRepo) SetState(_ context.Context, _ uuid.UUID, id int64, s domain.ThreadState) error {
	f.threads[id].State = s
	return nil
}

type fakeParticipantRepo struct{ pairs map[[2]int64]bool }

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{pairs: make(map[[2]int64]bool)}
}

func (f *fakeParticipantRepo) Upsert(_ context.Context, threadID, contactID int64) error {
	f.pairs[[2]int64{threadID, contactID}] = true
	return nil
}

func (f *fakeParticipantRepo) ListByThread(_ context.Context, _ int64) ([]*domain.ThreadParticipant, error) {
	return nil, nil
}

type fakeEmbeddingRepo struct{ vectors map[int64][]float64 }

func newFakeEmbeddingRepo() *fakeEmbeddingRepo {
	return &fakeEmbeddingRepo{vectors: make(map[int64][]float64)}
}

func (f *fakeEmbeddingRepo) Upsert(_ context.Context, _ uuid.UUID, threadID int64, v []float64) error {
	f.vectors[threadID] = v
	return nil
}

func (f *fakeEmbeddingRepo) ListForOwner(_ context.Context, _ uuid.UUID) ([]*out.ThreadEmbedding, error) {
	var res []*out.ThreadEmbedding
	for id, v := range f.vectors {
		res = append(res, &out.ThreadEmbedding{ThreadID: id, Vector: v})
	}
	return res, nil
}

func (f *fakeEmbeddingRepo) Get(_ context.Context, _ uuid.UUID, threadID int64) (*out.ThreadEmbedding, error) {
	v, ok := f.vectors[threadID]
	if !ok {
		return nil, apperr.NotFound("embedding")
	}
	return &out.ThreadEmbedding{ThreadID: threadID, Vector: v}, nil
}

type fakeContactRepo struct {
	byKey  map[string]*domain.Contact
	nextID int64
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{byKey: make(map[string]*domain.Contact), nextID: 1}
}

func (f *fakeContactRepo) Create(_ context.Context, c *domain.Contact) error {
	k := c.OwnerID.String() + "/" + c.PrimaryIdentifier
	if _, ok := f.byKey[k]; ok {
		return apperr.AlreadyExists("contact")
	}
	c.ID = f.nextID
	f.nextID++
	cp := *c
	f.byKey[k] = &cp
	return nil
}

func (f *fakeContactRepo) GetByIdentifier(_ context.Context, ownerID uuid.UUID, id string) (*domain.Contact, error) {
	c, ok := f.byKey[ownerID.String()+"/"+id]
	if !ok {
		return nil, apperr.NotFound("contact")
	}
	return c, nil
}

func (f *fakeContactRepo) GetByID(_ context.Context, _ uuid.UUID, _ int64) (*domain.Contact, error) {
	return nil, apperr.NotFound("contact")
}

func (f *fakeContactRepo) Update(_ context.Context, _ *domain.Contact) error { return nil }

type fakeAgentErrRepo struct{ errs []*domain.AgentError }

func (f *fakeAgentErrRepo) Insert(_ context.Context, e *domain.AgentError) error {
	f.errs = append(f.errs, e)
	return nil
}

func (f *fakeAgentErrRepo) ListRecent(_ context.Context, _ uuid.UUID, _ int) ([]*domain.AgentError, error) {
	return f.errs, nil
}

// scripted classifier/embedder keyed by subject substring
type scriptedClassifier struct {
	verdicts map[string]domain.TriageVerdict
	failFor  string
	failWith error
}

func (s *scriptedClassifier) Classify(_ context.Context, subject, _ string) (domain.TriageVerdict, error) {
	if s.failFor != "" && strings.Contains(subject, s.failFor) {
		return domain.TriageVerdict{}, s.failWith
	}
	for key, v := range s.verdicts {
		if strings.Contains(subject, key) {
			return v, nil
		}
	}
	return domain.DefaultVerdict(), nil
}

type scriptedEmbedder struct{ vectors map[string][]float64 }

func (s *scriptedEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	for key, v := range s.vectors {
		if strings.Contains(text, key) {
			return v, nil
		}
	}
	return []float64{0.1, 0.1, 0.1}, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return nil, apperr.Unavailable("openai", assertErr("embedding down"))
}

type passthroughSummarizer struct{}

func (passthroughSummarizer) RefreshSummary(_ context.Context, prior domain.ThreadSummary, transcript string) (domain.ThreadSummary, error) {
	return domain.ThreadSummary{Topic: prior.Topic, SummaryText: transcript}, nil
}

type fakeCalendar struct{}

func (fakeCalendar) ListBusy(_ context.Context, _ *domain.Owner, _, _ time.Time) ([]domain.CalendarWindow, error) {
	return nil, nil
}
func (fakeCalendar) InsertHold(_ context.Context, _ *domain.Owner, _ string, _, _ time.Time) (string, error) {
	return "cal-1", nil
}
func (fakeCalendar) ConfirmEvent(_ context.Context, _ *domain.Owner, _ string) error { return nil }
func (fakeCalendar) DeleteEvent(_ context.Context, _ *domain.Owner, _ string) error  { return nil }

type fakeEventRepo struct{ n int }

func (f *fakeEventRepo) Insert(_ context.Context, e *domain.ScheduledEvent) error {
	f.n++
	e.ID = int64(f.n)
	return nil
}
func (f *fakeEventRepo) GetByID(_ context.Context, _ uuid.UUID, _ int64) (*domain.ScheduledEvent, error) {
	return nil, apperr.NotFound("event")
}
func (f *fakeEventRepo) ListUpcoming(_ context.Context, _ uuid.UUID, _ time.Time, _ int) ([]*domain.ScheduledEvent, error) {
	return nil, nil
}
func (f *fakeEventRepo) SetStatus(_ context.Context, _ uuid.UUID, _ int64, _ domain.EventStatus) error {
	return nil
}

type fakeTodoRepo struct{ byDesc map[string]*domain.TodoItem }

func newFakeTodoRepo() *fakeTodoRepo { return &fakeTodoRepo{byDesc: make(map[string]*domain.TodoItem)} }

func (f *fakeTodoRepo) Insert(_ context.Context, t *domain.TodoItem) (bool, error) {
	if _, ok := f.byDesc[t.Description]; ok {
		return false, nil
	}
	f.byDesc[t.Description] = t
	return true, nil
}
func (f *fakeTodoRepo) GetByID(_ context.Context, _ uuid.UUID, _ int64) (*domain.TodoItem, error) {
	return nil, apperr.NotFound("todo")
}
func (f *fakeTodoRepo) ListOpen(_ context.Context, _ uuid.UUID) ([]*domain.TodoItem, error) {
	return nil, nil
}
func (f *fakeTodoRepo) Complete(_ context.Context, _ uuid.UUID, _ int64) error { return nil }

type fakeLease struct {
	held map[string]bool
}

func newFakeLease() *fakeLease { return &fakeLease{held: make(map[string]bool)} }

func (f *fakeLease) Acquire(_ context.Context, ownerKey, runType string, _ time.Duration) (bool, error) {
	k := ownerKey + ":" + runType
	if f.held[k] {
		return false, nil
	}
	f.held[k] = true
	return true, nil
}

func (f *fakeLease) Release(_ context.Context, ownerKey, runType string) error {
	delete(f.held, ownerKey+":"+runType)
	return nil
}

type fakeOwnerRepo struct{ owners []*domain.Owner }

func (f *fakeOwnerRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Owner, error) {
	for _, o := range f.owners {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, apperr.NotFound("owner")
}

func (f *fakeOwnerRepo) ListActive(_ context.Context) ([]*domain.Owner, error) {
	return f.owners, nil
}

func (f *fakeOwnerRepo) UpdateSettings(_ context.Context, _ uuid.UUID, _ domain.OwnerSettings) error {
	return nil
}

// ----------------------------------------------------------------------------
// Fixture
// ----------------------------------------------------------------------------

type pipelineFixture struct {
	pipeline  *Pipeline
	mailbox   *fakeMailbox
	messages  *fakeMessageRepo
	threads   *fakeThreadRepo
	agentErrs *fakeAgentErrRepo
	todos     *fakeTodoRepo
	owner     *domain.Owner
}

func quickRetry() retry.Policy {
	return retry.Policy{MaxRetries: 1, BaseDelay: time.Millisecond, IsRetryable: apperr.IsTransient}
}

func newPipelineFixture(classifier out.Classifier, embedder out.Embedder) *pipelineFixture {
	mailbox := &fakeMailbox{}
	messages := newFakeMessageRepo()
	threads := newFakeThreadRepo()
	agentErrs := &fakeAgentErrRepo{}
	todos := newFakeTodoRepo()

	resolver := triage.NewThreadResolver(
		threads, newFakeParticipantRepo(), newFakeEmbeddingRepo(), nil,
		triage.NewSpamFilter(), 0.65, nil,
	)
	refresher := triage.NewSummaryRefresher(passthroughSummarizer{}, threads, messages, 0)
	scheduler := schedule.NewScheduler(fakeCalendar{}, &fakeEventRepo{}, todos,
		schedule.Config{BusinessHourStart: 9, BusinessHourEnd: 17, SlotSearchDays: 3, AlternativeSlots: 3}, nil)

	owner := &domain.Owner{ID: uuid.New(), Email: "owner@example.com", Settings: domain.DefaultOwnerSettings()}

	pipeline := NewPipeline(
		mailbox, messages, threads, agentErrs,
		contact.NewResolver(newFakeContactRepo()),
		classifier, embedder, resolver, refresher, scheduler,
		PipelineConfig{MaxMessagesPerRun: 10, RetryPolicy: quickRetry()},
		nil,
	)
	return &pipelineFixture{pipeline, mailbox, messages, threads, agentErrs, todos, owner}
}

func email(providerID, from, subject, body string) *domain.InboundEmail {
	return &domain.InboundEmail{
		ID:         providerID,
		ProviderID: providerID,
		From:       from,
		Subject:    subject,
		RawText:    body,
		Timestamp:  time.Now(),
	}
}

// ----------------------------------------------------------------------------
// Tests
// ----------------------------------------------------------------------------

func TestPipelineMergesRelatedMessages(t *testing.T) {
	classifier := &scriptedClassifier{verdicts: map[string]domain.TriageVerdict{
		"Acme": {Relevance: domain.RelevanceBusiness, Importance: domain.ImportanceHigh, Type: domain.TypeInfo, Summary: "deal talk"},
	}}
	embedder := &scriptedEmbedder{vectors: map[string][]float64{
		"pricing": {0.9, 0.1, 0},
		"terms":   {0.88, 0.12, 0},
	}}
	fx := newPipelineFixture(classifier, embedder)
	fx.mailbox.unread = []*domain.InboundEmail{
		email("18c2f3a9b1d4e5f6", "alice@acme.com", "Acme deal", "pricing proposal attached"),
		email("18c2f3a9b1d4e5f7", "bob@acme.com", "Re: Acme deal", "the terms look fine"),
	}

	report, err := fx.pipeline.RunOwner(context.Background(), fx.owner)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, 0, report.Failed)
	assert.Len(t, fx.threads.threads, 1)
	assert.Len(t, fx.mailbox.read, 2)

	// high importance drives the thread score
	for _, thread := range fx.threads.threads {
		assert.Equal(t, 8, thread.PriorityScore)
	}
}

func TestPipelineStoresContactOnMessage(t *testing.T) {
	fx := newPipelineFixture(&scriptedClassifier{}, &scriptedEmbedder{})
	fx.mailbox.unread = []*domain.InboundEmail{
		email("18c2f3a9b1d4e5f6", "alice@acme.com", "Hello", "a perfectly normal message body"),
	}

	_, err := fx.pipeline.RunOwner(context.Background(), fx.owner)
	require.NoError(t, err)

	// contact is resolved before the insert so the stored row keeps the link
	require.Len(t, fx.messages.byID, 1)
	for _, m := range fx.messages.byID {
		assert.Equal(t, int64(1), m.ContactID)
	}
}

func TestPipelineIdempotentOnReplay(t *testing.T) {
	classifier := &scriptedClassifier{}
	fx := newPipelineFixture(classifier, &scriptedEmbedder{})
	fx.mailbox.unread = []*domain.InboundEmail{
		email("18c2f3a9b1d4e5f6", "alice@acme.com", "Hello", "a perfectly normal message body"),
	}

	_, err := fx.pipeline.RunOwner(context.Background(), fx.owner)
	require.NoError(t, err)

	// provider re-delivers the same message
	report, err := fx.pipeline.RunOwner(context.Background(), fx.owner)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 0, report.Created)
	assert.Len(t, fx.messages.byID, 1)
	assert.Len(t, fx.threads.threads, 1)
	// still marked read on replay
	assert.Len(t, fx.mailbox.read, 2)
}

func TestPipelineErrorBoundaryContinues(t *testing.T) {
	classifier := &scriptedClassifier{
		failFor:  "Broken",
		failWith: apperr.ExternalError("openai", assertErr("boom")),
	}
	fx := newPipelineFixture(classifier, &scriptedEmbedder{})
	fx.mailbox.unread = []*domain.InboundEmail{
		email("aaa1", "x@example.com", "Broken message", "this one fails to classify"),
		email("bbb2", "y@example.com", "Fine message", "this one goes through cleanly"),
	}

	report, err := fx.pipeline.RunOwner(context.Background(), fx.owner)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Created)
	require.Len(t, fx.agentErrs.errs, 1)
	assert.Equal(t, apperr.CodeExternalError, fx.agentErrs.errs[0].Code)
	assert.Regexp(t, `^A-\d{4}$`, fx.agentErrs.errs[0].ErrorID)
	assert.Equal(t, "Agent processing failed.", fx.agentErrs.errs[0].UserMessage)
	// the failed message is not marked read, the good one is
	assert.Equal(t, []string{"bbb2"}, fx.mailbox.read)
}

func TestPipelineEmbedderOutageLeavesUnthreaded(t *testing.T) {
	fx := newPipelineFixture(&scriptedClassifier{}, failingEmbedder{})
	fx.mailbox.unread = []*domain.InboundEmail{
		email("aaa1", "x@example.com", "Hello", "a perfectly normal message body"),
	}

	report, err := fx.pipeline.RunOwner(context.Background(), fx.owner)
	require.NoError(t, err)

	// the message is stored and marked read, just never threaded
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, fx.messages.byID, 1)
	assert.Empty(t, fx.threads.threads)
	assert.Equal(t, []string{"aaa1"}, fx.mailbox.read)
}

func TestPipelineAuthExpiredAborts(t *testing.T) {
	classifier := &scriptedClassifier{
		failFor:  "First",
		failWith: apperr.AuthExpired("owner@example.com"),
	}
	fx := newPipelineFixture(classifier, &scriptedEmbedder{})
	fx.mailbox.unread = []*domain.InboundEmail{
		email("aaa1", "x@example.com", "First message", "fails with expired credentials"),
		email("bbb2", "y@example.com", "Second message", "never reached"),
	}

	report, err := fx.pipeline.RunOwner(context.Background(), fx.owner)
	require.Error(t, err)
	assert.True(t, apperr.IsAuthExpired(err))
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Created)
}

func TestPipelineSchedulesTodo(t *testing.T) {
	classifier := &scriptedClassifier{verdicts: map[string]domain.TriageVerdict{
		"contract": {
			Relevance:  domain.RelevanceBusiness,
			Importance: domain.ImportanceRegular,
			Type:       domain.TypeTodo,
			Summary:    "send the contract",
			TodoDetails: &domain.TodoDetails{
				Description: "Send revised contract",
				Urgency:     domain.UrgencyTomorrow,
			},
		},
	}}
	fx := newPipelineFixture(classifier, &scriptedEmbedder{})
	fx.mailbox.unread = []*domain.InboundEmail{
		email("aaa1", "x@example.com", "contract please", "could you send the revised contract over"),
	}

	_, err := fx.pipeline.RunOwner(context.Background(), fx.owner)
	require.NoError(t, err)
	assert.Contains(t, fx.todos.byDesc, "Send revised contract")
}

func TestPipelineSkipsNoiseWithoutEmbedding(t *testing.T) {
	classifier := &scriptedClassifier{verdicts: map[string]domain.TriageVerdict{
		"Digest": {Relevance: domain.RelevanceNoise, Importance: domain.ImportanceLow, Type: domain.TypeInfo},
	}}
	fx := newPipelineFixture(classifier, &scriptedEmbedder{})
	fx.mailbox.unread = []*domain.InboundEmail{
		email("aaa1", "digest@example.com", "Digest", "a long enough digest body text"),
	}

	report, err := fx.pipeline.RunOwner(context.Background(), fx.owner)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, fx.threads.threads)
	// noise is still marked read so it never comes back
	assert.Len(t, fx.mailbox.read, 1)
}

func TestRunnerLeasePreventsOverlap(t *testing.T) {
	classifier := &scriptedClassifier{}
	fx := newPipelineFixture(classifier, &scriptedEmbedder{})
	lease := newFakeLease()
	owners := &fakeOwnerRepo{owners: []*domain.Owner{fx.owner}}
	runner := NewRunner(owners, lease, fx.pipeline, time.Minute)

	// simulate an in-flight run
	held, err := lease.Acquire(context.Background(), fx.owner.ID.String(), RunTypeIngest, time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	_, err = runner.RunOwner(context.Background(), fx.owner.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConflict, apperr.AsAppError(err).Code)

	// released lease lets the run proceed
	require.NoError(t, lease.Release(context.Background(), fx.owner.ID.String(), RunTypeIngest))
	_, err = runner.RunOwner(context.Background(), fx.owner.ID)
	require.NoError(t, err)
	assert.Empty(t, lease.held)
}

// assertErr is a trivial error type for scripting failures.
type assertErr string

func (e assertErr) Error() string { return string(e) }
