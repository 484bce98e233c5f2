package schedule

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage_server/core/domain"
	"triage_server/pkg/apperr"
)

// ----------------------------------------------------------------------------
// Fakes
// ----------------------------------------------------------------------------

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeCalendar struct {
	busy    []domain.CalendarWindow
	inserts []string
}

func (f *fakeCalendar) ListBusy(_ context.Context, _ *domain.Owner, _, _ time.Time) ([]domain.CalendarWindow, error) {
	return f.busy, nil
}

func (f *fakeCalendar) InsertHold(_ context.Context, _ *domain.Owner, title string, _, _ time.Time) (string, error) {
	f.inserts = append(f.inserts, title)
	return "cal-evt-1", nil
}

func (f *fakeCalendar) ConfirmEvent(_ context.Context, _ *domain.Owner, _ string) error { return nil }
func (f *fakeCalendar) DeleteEvent(_ context.Context, _ *domain.Owner, _ string) error  { return nil }

type fakeEventRepo struct {
	events map[int64]*domain.ScheduledEvent
	nextID int64
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[int64]*domain.ScheduledEvent), nextID: 1}
}

func (f *fakeEventRepo) Insert(_ context.Context, e *domain.ScheduledEvent) error {
	e.ID = f.nextID
	f.nextID++
	f.events[e.ID] = e
	return nil
}

func (f *fakeEventRepo) GetByID(_ context.Context, _ uuid.UUID, id int64) (*domain.ScheduledEvent, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, apperr.NotFound("event")
	}
	return e, nil
}

func (f *fakeEventRepo) ListUpcoming(_ context.Context, _ uuid.UUID, _ time.Time, _ int) ([]*domain.ScheduledEvent, error) {
	var res []*domain.ScheduledEvent
	for _, e := range f.events {
		res = append(res, e)
	}
	return res, nil
}

func (f *fakeEventRepo) SetStatus(_ context.Context, _ uuid.UUID, id int64, st domain.EventStatus) error {
	f.events[id].Status = st
	return nil
}

type fakeTodoRepo struct {
	todos  map[string]*domain.TodoItem
	nextID int64
}

func newFakeTodoRepo() *fakeTodoRepo {
	return &fakeTodoRepo{todos: make(map[string]*domain.TodoItem), nextID: 1}
}

func (f *fakeTodoRepo) Insert(_ context.Context, t *domain.TodoItem) (bool, error) {
	key := strings.ToLower(t.Description)
	if existing, ok := f.todos[key]; ok && existing.Status == domain.TodoStatusOpen {
		return false, nil
	}
	t.ID = f.nextID
	f.nextID++
	f.todos[key] = t
	return true, nil
}

func (f *fakeTodoRepo) GetByID(_ context.Context, _ uuid.UUID, id int64) (*domain.TodoItem, error) {
	for _, t := range f.todos {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, apperr.NotFound("todo")
}

func (f *fakeTodoRepo) ListOpen(_ context.Context, _ uuid.UUID) ([]*domain.TodoItem, error) {
	var res []*domain.TodoItem
	for _, t := range f.todos {
		if t.Status == domain.TodoStatusOpen {
			res = append(res, t)
		}
	}
	return res, nil
}

func (f *fakeTodoRepo) Complete(_ context.Context, _ uuid.UUID, id int64) error {
	for _, t := range f.todos {
		if t.ID == id {
			t.Status = domain.TodoStatusDone
			return nil
		}
	}
	return apperr.NotFound("todo")
}

// ----------------------------------------------------------------------------
// Fixtures
// ----------------------------------------------------------------------------

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC) // Monday 10:00

func newTestScheduler(cal *fakeCalendar) (*Scheduler, *fakeEventRepo, *fakeTodoRepo) {
	events := newFakeEventRepo()
	todos := newFakeTodoRepo()
	cfg := Config{BusinessHourStart: 9, BusinessHourEnd: 17, SlotSearchDays: 3, AlternativeSlots: 3}
	return NewScheduler(cal, events, todos, cfg, fixedClock{testNow}), events, todos
}

func eventVerdict(requested *time.Time, durationMin int) domain.TriageVerdict {
	return domain.TriageVerdict{
		Relevance:  domain.RelevanceBusiness,
		Importance: domain.ImportanceHigh,
		Type:       domain.TypeEvent,
		Summary:    "sync call",
		EventDetails: &domain.EventDetails{
			DurationMinutes: durationMin,
			RequestedTime:   requested,
		},
	}
}

// ----------------------------------------------------------------------------
// Tests
// ----------------------------------------------------------------------------

func TestScheduleEventFreeSlotPlacesHold(t *testing.T) {
	cal := &fakeCalendar{}
	scheduler, events, _ := newTestScheduler(cal)
	owner := &domain.Owner{ID: uuid.New()}
	thread := &domain.ConversationThread{ID: 4, Topic: "Acme kickoff"}
	msg := &domain.Message{ID: "m1"}

	requested := testNow.Add(26 * time.Hour)
	sug, err := scheduler.HandleVerdict(context.Background(), owner, thread, msg, eventVerdict(&requested, 30))
	require.NoError(t, err)

	require.NotNil(t, sug)
	assert.Equal(t, "suggest_accept", sug.Kind)
	require.NotNil(t, sug.Event)
	assert.Equal(t, "[HOLD] Acme kickoff", sug.Event.Title)
	assert.Equal(t, requested, sug.Event.Start)
	assert.Equal(t, requested.Add(30*time.Minute), sug.Event.End)
	assert.Equal(t, domain.EventStatusHold, sug.Event.Status)
	assert.Equal(t, "cal-evt-1", sug.Event.CalendarEventID)
	assert.Len(t, events.events, 1)
	assert.Equal(t, []string{"[HOLD] Acme kickoff"}, cal.inserts)
}

func TestScheduleEventDefaultsToTomorrow(t *testing.T) {
	cal := &fakeCalendar{}
	scheduler, _, _ := newTestScheduler(cal)
	owner := &domain.Owner{ID: uuid.New()}
	msg := &domain.Message{ID: "m1"}

	verdict := eventVerdict(nil, 0)
	sug, err := scheduler.HandleVerdict(context.Background(), owner, nil, msg, verdict)
	require.NoError(t, err)

	require.Equal(t, "suggest_accept", sug.Kind)
	assert.Equal(t, testNow.Add(24*time.Hour), sug.Event.Start)
	assert.Equal(t, testNow.Add(24*time.Hour+DefaultEventDuration), sug.Event.End)
}

func TestScheduleEventBusySuggestsSlots(t *testing.T) {
	requested := testNow.Add(24 * time.Hour) // Tuesday 10:00
	cal := &fakeCalendar{busy: []domain.CalendarWindow{
		{Start: requested.Add(-time.Hour), End: requested.Add(2 * time.Hour)},
	}}
	scheduler, events, _ := newTestScheduler(cal)
	owner := &domain.Owner{ID: uuid.New()}
	msg := &domain.Message{ID: "m1"}

	sug, err := scheduler.HandleVerdict(context.Background(), owner, nil, msg, eventVerdict(&requested, 60))
	require.NoError(t, err)

	assert.Equal(t, "suggest_slots", sug.Kind)
	assert.Nil(t, sug.Event)
	assert.Empty(t, events.events)
	assert.Empty(t, cal.inserts)

	require.Len(t, sug.Slots, 3)
	for _, slot := range sug.Slots {
		assert.False(t, anyOverlap(cal.busy, slot.Start, slot.End), "slot %v overlaps busy window", slot.Start)
		assert.GreaterOrEqual(t, slot.Start.Hour(), 9)
		assert.LessOrEqual(t, slot.End.Hour(), 17)
	}
	// slots are in ascending order
	assert.True(t, sug.Slots[0].Start.Before(sug.Slots[1].Start))
	assert.True(t, sug.Slots[1].Start.Before(sug.Slots[2].Start))
}

func TestCreateTodoAndDedup(t *testing.T) {
	scheduler, _, todos := newTestScheduler(&fakeCalendar{})
	owner := &domain.Owner{ID: uuid.New()}
	msg := &domain.Message{ID: "m1"}

	verdict := domain.TriageVerdict{
		Type: domain.TypeTodo,
		TodoDetails: &domain.TodoDetails{
			Description: "Send revised contract to Acme",
			Urgency:     domain.UrgencyTomorrow,
		},
	}

	first, err := scheduler.HandleVerdict(context.Background(), owner, nil, msg, verdict)
	require.NoError(t, err)
	assert.Equal(t, "todo_created", first.Kind)
	assert.Equal(t, testNow.AddDate(0, 0, 1), first.Todo.DueDate)

	second, err := scheduler.HandleVerdict(context.Background(), owner, nil, &domain.Message{ID: "m2"}, verdict)
	require.NoError(t, err)
	assert.Equal(t, "todo_duplicate", second.Kind)
	assert.Nil(t, second.Todo)
	assert.Len(t, todos.todos, 1)
}

func TestTodoUrgencyDueDates(t *testing.T) {
	assert.Equal(t, testNow, domain.DueDateFor(domain.UrgencyToday, testNow))
	assert.Equal(t, testNow.AddDate(0, 0, 1), domain.DueDateFor(domain.UrgencyTomorrow, testNow))
	assert.Equal(t, testNow.AddDate(0, 0, 3), domain.DueDateFor(domain.UrgencySoon, testNow))
}

func TestInfoVerdictProducesNothing(t *testing.T) {
	scheduler, events, todos := newTestScheduler(&fakeCalendar{})
	owner := &domain.Owner{ID: uuid.New()}

	sug, err := scheduler.HandleVerdict(context.Background(), owner, nil, &domain.Message{ID: "m1"}, domain.DefaultVerdict())
	require.NoError(t, err)
	assert.Nil(t, sug)
	assert.Empty(t, events.events)
	assert.Empty(t, todos.todos)
}

func TestActionsCompleteTodo(t *testing.T) {
	todos := newFakeTodoRepo()
	events := newFakeEventRepo()
	owner := &domain.Owner{ID: uuid.New()}
	ownerRepo := &stubOwnerRepo{owner: owner}
	actions := NewActions(todos, events, ownerRepo, &fakeCalendar{})

	todo := &domain.TodoItem{OwnerID: owner.ID, Description: "call back", Status: domain.TodoStatusOpen}
	_, err := todos.Insert(context.Background(), todo)
	require.NoError(t, err)

	require.NoError(t, actions.Execute(context.Background(), owner.ID, ActionCompleteTodo, todo.ID))
	got, err := todos.GetByID(context.Background(), owner.ID, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TodoStatusDone, got.Status)
}

func TestActionsConfirmAndDismissEvent(t *testing.T) {
	todos := newFakeTodoRepo()
	events := newFakeEventRepo()
	owner := &domain.Owner{ID: uuid.New()}
	ownerRepo := &stubOwnerRepo{owner: owner}
	actions := NewActions(todos, events, ownerRepo, &fakeCalendar{})

	hold := &domain.ScheduledEvent{OwnerID: owner.ID, Status: domain.EventStatusHold, CalendarEventID: "c1"}
	require.NoError(t, events.Insert(context.Background(), hold))

	require.NoError(t, actions.Execute(context.Background(), owner.ID, ActionConfirmEvent, hold.ID))
	assert.Equal(t, domain.EventStatusConfirmed, events.events[hold.ID].Status)

	// confirming again conflicts
	err := actions.Execute(context.Background(), owner.ID, ActionConfirmEvent, hold.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConflict, apperr.AsAppError(err).Code)

	hold2 := &domain.ScheduledEvent{OwnerID: owner.ID, Status: domain.EventStatusHold, CalendarEventID: "c2"}
	require.NoError(t, events.Insert(context.Background(), hold2))
	require.NoError(t, actions.Execute(context.Background(), owner.ID, ActionDismissEvent, hold2.ID))
	assert.Equal(t, domain.EventStatusDismissed, events.events[hold2.ID].Status)
}

func TestActionsRejectUnknown(t *testing.T) {
	actions := NewActions(newFakeTodoRepo(), newFakeEventRepo(), &stubOwnerRepo{}, &fakeCalendar{})
	err := actions.Execute(context.Background(), uuid.New(), "explode", 1)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeBadRequest, apperr.AsAppError(err).Code)
}

type stubOwnerRepo struct{ owner *domain.Owner }

func (s *stubOwnerRepo) GetByID(_ context.Context, _ uuid.UUID) (*domain.Owner, error) {
	if s.owner == nil {
		return nil, apperr.NotFound("owner")
	}
	return s.owner, nil
}

func (s *stubOwnerRepo) ListActive(_ context.Context) ([]*domain.Owner, error) {
	if s.owner == nil {
		return nil, nil
	}
	return []*domain.Owner{s.owner}, nil
}

func (s *stubOwnerRepo) UpdateSettings(_ context.Context, _ uuid.UUID, _ domain.OwnerSettings) error {
	return nil
}
