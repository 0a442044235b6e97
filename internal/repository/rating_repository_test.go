package repository_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notes-ledger/internal/models"
	"notes-ledger/internal/repository"
)

var eventColumns = []string{"seq", "note_id", "participant_id", "value", "submitted_at", "accepted_at"}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestRatingRepositorySubmitFirstVote(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewRatingRepository(db)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM notes WHERE id = $1 FOR UPDATE")).
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("n1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(seq), 0) FROM rating_events WHERE note_id = $1")).
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM rating_events")).
		WithArgs("n1", "p1").
		WillReturnRows(sqlmock.NewRows(eventColumns))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO rating_events")).
		WithArgs("n1", "p1", 1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "submitted_at", "accepted_at"}).AddRow(7, now, now))
	mock.ExpectCommit()

	result, err := repo.Submit(context.Background(), models.RatingSubmission{NoteID: "n1", ParticipantID: "p1", Value: 1})
	require.NoError(t, err)
	assert.True(t, result.Current)
	assert.Nil(t, result.Previous)
	assert.Equal(t, int64(7), result.Event.Seq)
	assert.Zero(t, result.PriorSeq)
	assert.Equal(t, 1, result.Delta())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingRepositorySubmitStaleEvent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewRatingRepository(db)
	prevAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	staleAt := prevAt.Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM notes WHERE id = $1 FOR UPDATE")).
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("n1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(seq), 0) FROM rating_events WHERE note_id = $1")).
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("FROM rating_events")).
		WithArgs("n1", "p1").
		WillReturnRows(sqlmock.NewRows(eventColumns).AddRow(3, "n1", "p1", 1, prevAt, prevAt))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO rating_events")).
		WithArgs("n1", "p1", -1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "submitted_at", "accepted_at"}).AddRow(4, staleAt, prevAt.Add(time.Minute)))
	mock.ExpectCommit()

	result, err := repo.Submit(context.Background(), models.RatingSubmission{
		NoteID: "n1", ParticipantID: "p1", Value: -1, SubmittedAt: staleAt,
	})
	require.NoError(t, err)
	assert.False(t, result.Current)
	require.NotNil(t, result.Previous)
	assert.Equal(t, int64(3), result.Previous.Seq)
	assert.Equal(t, int64(3), result.PriorSeq)
	assert.Zero(t, result.Delta())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingRepositorySubmitUnknownNote(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewRatingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM notes WHERE id = $1 FOR UPDATE")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Submit(context.Background(), models.RatingSubmission{NoteID: "missing", ParticipantID: "p1", Value: 0})
	assert.True(t, models.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingRepositorySubmitSerializationFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewRatingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM notes WHERE id = $1 FOR UPDATE")).
		WithArgs("n1").
		WillReturnError(&pq.Error{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()

	_, err := repo.Submit(context.Background(), models.RatingSubmission{NoteID: "n1", ParticipantID: "p1", Value: 1})
	assert.True(t, models.IsConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingRepositorySubmitRejectsInvalidValue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewRatingRepository(db)

	_, err := repo.Submit(context.Background(), models.RatingSubmission{NoteID: "n1", ParticipantID: "p1", Value: 3})
	assert.True(t, models.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet(), "invalid input must not reach the database")
}

func TestRatingRepositoryLastSeq(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewRatingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(seq), 0) FROM rating_events WHERE note_id = $1")).
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(42))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(seq), 0) FROM rating_events WHERE note_id = $1")).
		WithArgs("n2").
		WillReturnError(sql.ErrConnDone)

	seq, err := repo.LastSeq(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), seq)

	_, err = repo.LastSeq(context.Background(), "n2")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingRepositoryScoresOf(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewRatingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT note_id, COALESCE(SUM(value), 0)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"note_id", "sum"}).
			AddRow("n1", 2).
			AddRow("n2", -1))

	scores, err := repo.ScoresOf(context.Background(), []string{"n1", "n2", "n3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"n1": 2, "n2": -1, "n3": 0}, scores)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingRepositoryScoresOfEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewRatingRepository(db)

	scores, err := repo.ScoresOf(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingRepositoryCurrentEventsFor(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewRatingRepository(db)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (participant_id)")).
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow(5, "n1", "p1", 1, at, at).
			AddRow(9, "n1", "p2", -1, at, at))

	events, err := repo.CurrentEventsFor(context.Background(), "n1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "p2", events[1].ParticipantID)
	require.NoError(t, mock.ExpectationsWereMet())
}
