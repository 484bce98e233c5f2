package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage_server/core/domain"
	"triage_server/pkg/apperr"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestMessageInsertIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMessageAdapter(db)
	ownerID := uuid.New()

	msg := &domain.Message{
		ID:          "00000000-0000-0000-18c2-f3a9b1d4e5f6",
		OwnerID:     ownerID,
		Direction:   domain.DirectionInbound,
		RawText:     "raw",
		CleanedText: "clean",
		Timestamp:   time.Now(),
	}

	// first insert lands
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	inserted, err := adapter.Insert(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, inserted)

	// replay conflicts away
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	inserted, err = adapter.Insert(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, inserted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContactCreateMapsDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewContactAdapter(db)

	mock.ExpectQuery(`INSERT INTO contacts`).
		WillReturnError(&pq.Error{Code: pgUniqueViolation})

	err := adapter.Create(context.Background(), &domain.Contact{
		OwnerID:           uuid.New(),
		Name:              "Alice",
		PrimaryIdentifier: "alice@example.com",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsDuplicate(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTodoInsertDedupReturnsFalse(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewTodoAdapter(db)

	mock.ExpectQuery(`INSERT INTO todos`).
		WillReturnError(&pq.Error{Code: pgUniqueViolation})

	inserted, err := adapter.Insert(context.Background(), &domain.TodoItem{
		OwnerID:     uuid.New(),
		Description: "Send revised contract",
		Urgency:     domain.UrgencyTomorrow,
		DueDate:     time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestThreadGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewThreadAdapter(db)
	ownerID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM threads`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := adapter.GetByID(context.Background(), ownerID, 42)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.AsAppError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestThreadListTopOrdersByPriority(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewThreadAdapter(db)
	ownerID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "owner_id", "topic", "summary_text", "state", "priority_score", "last_updated", "created_at",
	}).
		AddRow(int64(1), ownerID, "Acme deal", "closing", "active", 9, now, now).
		AddRow(int64(2), ownerID, "Office move", "quotes", "active", 5, now, now)

	mock.ExpectQuery(`SELECT .+ FROM threads`).
		WithArgs(ownerID, "active", 10).
		WillReturnRows(rows)

	threads, err := adapter.ListTop(context.Background(), ownerID, 10)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "Acme deal", threads[0].Topic)
	assert.Equal(t, 9, threads[0].PriorityScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestThreadListActiveFiltersOnActiveState(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewThreadAdapter(db)
	ownerID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "owner_id", "topic", "summary_text", "state", "priority_score", "last_updated", "created_at",
	}).
		AddRow(int64(1), ownerID, "Acme deal", "closing", "active", 9, now, now)

	// idle and archived threads are excluded by the query itself
	mock.ExpectQuery(`SELECT .+ FROM threads\s+WHERE owner_id = \$1 AND state = \$2`).
		WithArgs(ownerID, "active").
		WillReturnRows(rows)

	threads, err := adapter.ListActive(context.Background(), ownerID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestThreadTouchLeavesStateAlone(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewThreadAdapter(db)
	ownerID := uuid.New()
	at := time.Now()

	// last_updated only; an idle thread stays idle until the owner acts
	mock.ExpectExec(`UPDATE threads\s+SET last_updated = \$1\s+WHERE owner_id = \$2 AND id = \$3`).
		WithArgs(at, ownerID, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.Touch(context.Background(), ownerID, 7, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantUpsertIgnoresConflict(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewParticipantAdapter(db)

	mock.ExpectExec(`INSERT INTO thread_participants`).
		WithArgs(int64(3), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, adapter.Upsert(context.Background(), 3, 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTodoCompleteRequiresOpenRow(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewTodoAdapter(db)
	ownerID := uuid.New()

	mock.ExpectExec(`UPDATE todos`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := adapter.Complete(context.Background(), ownerID, 5)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.AsAppError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerSettingsRoundTripPreservesUnknownFields(t *testing.T) {
	raw := []byte(`{"timezone":"Asia/Seoul","brief_enabled":true,"experimental_flag":42}`)

	settings, err := domain.ParseOwnerSettings(raw)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", settings.Timezone)

	settings.BriefHour = 6
	merged, err := mergeSettings(settings)
	require.NoError(t, err)
	assert.Contains(t, string(merged), `"experimental_flag":42`)
	assert.Contains(t, string(merged), `"brief_hour":6`)
}
