// Package schedule turns EVENT and TODO verdicts into calendar holds
// and deduplicated task items.
package schedule

import (
	"context"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"
)

// =============================================================================
// Action Scheduler
// =============================================================================
//
// EVENT verdicts: pick the requested time (or tomorrow, same hour) and
// check the owner's calendar.
//   - Free:  insert a tentative [HOLD] event and suggest accepting it.
//   - Busy:  propose up to AlternativeSlots free windows within the
//            next SlotSearchDays days, inside business hours.
// TODO verdicts: insert a task, deduplicated per owner by description,
// with a due date from the urgency class.

const (
	DefaultEventDuration = 60 * time.Minute

	// step sizes while scanning for alternative slots
	stepAfterFree = 2 * time.Hour
	stepAfterBusy = time.Hour
)

// Suggestion describes what the scheduler proposes to the owner.
type Suggestion struct {
	Kind    string // suggest_accept | suggest_slots | todo_created | todo_duplicate
	Event   *domain.ScheduledEvent
	Slots   []domain.SlotSuggestion
	Todo    *domain.TodoItem
}

type Scheduler struct {
	calendar out.CalendarProvider
	events   out.EventRepository
	todos    out.TodoRepository
	clock    domain.Clock
	log      *logger.Logger

	businessStart int
	businessEnd   int
	searchDays    int
	maxSlots      int
}

type Config struct {
	BusinessHourStart int
	BusinessHourEnd   int
	SlotSearchDays    int
	AlternativeSlots  int
}

func NewScheduler(
	calendar out.CalendarProvider,
	events out.EventRepository,
	todos out.TodoRepository,
	cfg Config,
	clock domain.Clock,
) *Scheduler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Scheduler{
		calendar:      calendar,
		events:        events,
		todos:         todos,
		clock:         clock,
		log:           logger.WithField("component", "scheduler"),
		businessStart: cfg.BusinessHourStart,
		businessEnd:   cfg.BusinessHourEnd,
		searchDays:    cfg.SlotSearchDays,
		maxSlots:      cfg.AlternativeSlots,
	}
}

// HandleVerdict applies the scheduling side effect of a verdict.
// INFO verdicts produce nothing.
func (s *Scheduler) HandleVerdict(
	ctx context.Context,
	owner *domain.Owner,
	thread *domain.ConversationThread,
	msg *domain.Message,
	verdict domain.TriageVerdict,
) (*Suggestion, error) {
	switch verdict.Type {
	case domain.TypeEvent:
		return s.scheduleEvent(ctx, owner, thread, msg, verdict)
	case domain.TypeTodo:
		return s.createTodo(ctx, owner, thread, msg, verdict)
	default:
		return nil, nil
	}
}

func (s *Scheduler) scheduleEvent(
	ctx context.Context,
	owner *domain.Owner,
	thread *domain.ConversationThread,
	msg *domain.Message,
	verdict domain.TriageVerdict,
) (*Suggestion, error) {
	now := s.clock.Now()

	duration := DefaultEventDuration
	var start time.Time
	if verdict.EventDetails != nil {
		if verdict.EventDetails.DurationMinutes > 0 {
			duration = time.Duration(verdict.EventDetails.DurationMinutes) * time.Minute
		}
		if verdict.EventDetails.RequestedTime != nil {
			start = *verdict.EventDetails.RequestedTime
		}
	}
	if start.IsZero() {
		start = now.Add(24 * time.Hour)
	}
	end := start.Add(duration)

	busy, err := s.calendar.ListBusy(ctx, owner, now, now.AddDate(0, 0, s.searchDays))
	if err != nil {
		return nil, err
	}

	title := "[HOLD] " + threadTitle(thread, verdict)

	if !anyOverlap(busy, start, end) {
		providerID, err := s.calendar.InsertHold(ctx, owner, title, start, end)
		if err != nil {
			return nil, err
		}
		event := &domain.ScheduledEvent{
			OwnerID:         owner.ID,
			ThreadID:        threadIDOf(thread),
			Title:           title,
			Start:           start,
			End:             end,
			Status:          domain.EventStatusHold,
			CalendarEventID: providerID,
			SourceMsgID:     msg.ID,
			CreatedAt:       now,
		}
		if err := s.events.Insert(ctx, event); err != nil {
			return nil, err
		}
		s.log.WithFields(map[string]any{
			"owner_id": owner.ID.String(),
			"start":    start.Format(time.RFC3339),
		}).Info("placed calendar hold")
		return &Suggestion{Kind: "suggest_accept", Event: event}, nil
	}

	slots := s.findSlots(busy, start, duration, now)
	return &Suggestion{Kind: "suggest_slots", Slots: slots}, nil
}

// findSlots scans business hours over the search window for free
// windows of the requested duration.
func (s *Scheduler) findSlots(busy []domain.CalendarWindow, from time.Time, duration time.Duration, now time.Time) []domain.SlotSuggestion {
	var slots []domain.SlotSuggestion

	cursor := from
	if cursor.Before(now) {
		cursor = now
	}
	cursor = s.clampToBusinessHours(cursor)
	deadline := now.AddDate(0, 0, s.searchDays)

	for cursor.Before(deadline) && len(slots) < s.maxSlots {
		end := cursor.Add(duration)
		if end.Hour() > s.businessEnd || (end.Hour() == s.businessEnd && end.Minute() > 0) {
			cursor = s.startOfNextBusinessDay(cursor)
			continue
		}
		if anyOverlap(busy, cursor, end) {
			cursor = s.clampToBusinessHours(cursor.Add(stepAfterBusy))
			continue
		}
		slots = append(slots, domain.SlotSuggestion{Start: cursor, End: end})
		cursor = s.clampToBusinessHours(cursor.Add(stepAfterFree))
	}
	return slots
}

func (s *Scheduler) clampToBusinessHours(t time.Time) time.Time {
	if t.Hour() < s.businessStart {
		return time.Date(t.Year(), t.Month(), t.Day(), s.businessStart, 0, 0, 0, t.Location())
	}
	if t.Hour() >= s.businessEnd {
		return s.startOfNextBusinessDay(t)
	}
	return t
}

func (s *Scheduler) startOfNextBusinessDay(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), s.businessStart, 0, 0, 0, t.Location())
}

func (s *Scheduler) createTodo(
	ctx context.Context,
	owner *domain.Owner,
	thread *domain.ConversationThread,
	msg *domain.Message,
	verdict domain.TriageVerdict,
) (*Suggestion, error) {
	now := s.clock.Now()

	description := ""
	urgency := domain.UrgencySoon
	if verdict.TodoDetails != nil {
		description = verdict.TodoDetails.Description
		if verdict.TodoDetails.Urgency != "" {
			urgency = verdict.TodoDetails.Urgency
		}
	}
	if description == "" {
		description = verdict.Summary
	}
	if description == "" {
		return nil, nil
	}

	todo := &domain.TodoItem{
		OwnerID:     owner.ID,
		ThreadID:    threadIDOf(thread),
		Description: description,
		Urgency:     urgency,
		DueDate:     domain.DueDateFor(urgency, now),
		Status:      domain.TodoStatusOpen,
		SourceMsgID: msg.ID,
		CreatedAt:   now,
	}

	inserted, err := s.todos.Insert(ctx, todo)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return &Suggestion{Kind: "todo_duplicate"}, nil
	}
	return &Suggestion{Kind: "todo_created", Todo: todo}, nil
}

func anyOverlap(busy []domain.CalendarWindow, start, end time.Time) bool {
	for _, w := range busy {
		if w.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func threadTitle(thread *domain.ConversationThread, verdict domain.TriageVerdict) string {
	if thread != nil && thread.Topic != "" {
		return thread.Topic
	}
	if verdict.Summary != "" {
		return verdict.Summary
	}
	return "Meeting"
}

func threadIDOf(thread *domain.ConversationThread) *int64 {
	if thread == nil {
		return nil
	}
	id := thread.ID
	return &id
}
