package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"notes-ledger/internal/database"
	"notes-ledger/internal/models"
)

// RatingRepository is the Postgres rating ledger. Each submission runs in its
// own transaction holding a row lock on the rated note.
type RatingRepository struct {
	db *sql.DB
}

// NewRatingRepository creates a new rating repository
func NewRatingRepository(db *sql.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Submit appends a rating event. A zero SubmittedAt takes the database clock.
func (r *RatingRepository) Submit(ctx context.Context, sub models.RatingSubmission) (*models.SubmitResult, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	submittedAt := sql.NullTime{Time: sub.SubmittedAt, Valid: !sub.SubmittedAt.IsZero()}

	var result *models.SubmitResult
	err := database.WithTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		var noteID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM notes WHERE id = $1 FOR UPDATE`, sub.NoteID).Scan(&noteID)
		if err == sql.ErrNoRows {
			return models.NewNotFoundError("note", sub.NoteID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock note: %w", err)
		}

		priorSeq, err := lastSeq(ctx, tx, sub.NoteID)
		if err != nil {
			return err
		}

		previous, err := currentEvent(ctx, tx, sub.NoteID, sub.ParticipantID)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO rating_events (note_id, participant_id, value, submitted_at)
			VALUES ($1, $2, $3, COALESCE($4, clock_timestamp()))
			RETURNING seq, submitted_at, accepted_at
		`

		event := models.RatingEvent{
			NoteID:        sub.NoteID,
			ParticipantID: sub.ParticipantID,
			Value:         sub.Value,
		}
		if err := tx.QueryRowContext(ctx, query,
			sub.NoteID,
			sub.ParticipantID,
			sub.Value,
			submittedAt,
		).Scan(&event.Seq, &event.SubmittedAt, &event.AcceptedAt); err != nil {
			return fmt.Errorf("failed to insert rating event: %w", err)
		}

		result = &models.SubmitResult{
			Event:    event,
			Previous: previous,
			Current:  previous == nil || event.Supersedes(*previous),
			PriorSeq: priorSeq,
		}
		return nil
	})
	if database.IsRetryable(err) {
		return nil, &models.ConflictError{Resource: "rating", Reason: "concurrent submission for note " + sub.NoteID, Err: err}
	}
	if err != nil {
		if models.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to submit rating: %w", err)
	}

	return result, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lastSeq(ctx context.Context, q rowQuerier, noteID string) (int64, error) {
	var seq int64
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM rating_events WHERE note_id = $1`, noteID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest rating seq: %w", err)
	}
	return seq, nil
}

// LastSeq returns the Seq of the note's latest event, 0 if it has none
func (r *RatingRepository) LastSeq(ctx context.Context, noteID string) (int64, error) {
	return lastSeq(ctx, r.db, noteID)
}

// currentEvent returns the participant's current event for the note, or nil
func currentEvent(ctx context.Context, tx *sql.Tx, noteID, participantID string) (*models.RatingEvent, error) {
	query := `
		SELECT seq, note_id, participant_id, value, submitted_at, accepted_at
		FROM rating_events
		WHERE note_id = $1 AND participant_id = $2
		ORDER BY submitted_at DESC, seq DESC
		LIMIT 1
	`

	event, err := scanRatingEvent(tx.QueryRowContext(ctx, query, noteID, participantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current rating: %w", err)
	}
	return event, nil
}

// CurrentEventsFor returns each participant's current event for the note
func (r *RatingRepository) CurrentEventsFor(ctx context.Context, noteID string) ([]models.RatingEvent, error) {
	query := `
		SELECT DISTINCT ON (participant_id) seq, note_id, participant_id, value, submitted_at, accepted_at
		FROM rating_events
		WHERE note_id = $1
		ORDER BY participant_id, submitted_at DESC, seq DESC
	`
	return r.queryEvents(ctx, query, noteID)
}

// History returns every event recorded for the note in acceptance order
func (r *RatingRepository) History(ctx context.Context, noteID string) ([]models.RatingEvent, error) {
	query := `
		SELECT seq, note_id, participant_id, value, submitted_at, accepted_at
		FROM rating_events
		WHERE note_id = $1
		ORDER BY seq
	`
	return r.queryEvents(ctx, query, noteID)
}

// ScoresOf sums the current events of every note in a single statement, so
// all scores reflect the same snapshot
func (r *RatingRepository) ScoresOf(ctx context.Context, noteIDs []string) (map[string]int, error) {
	scores := make(map[string]int, len(noteIDs))
	if len(noteIDs) == 0 {
		return scores, nil
	}
	for _, id := range noteIDs {
		scores[id] = 0
	}

	query := `
		SELECT note_id, COALESCE(SUM(value), 0)
		FROM (
			SELECT DISTINCT ON (note_id, participant_id) note_id, value
			FROM rating_events
			WHERE note_id = ANY($1)
			ORDER BY note_id, participant_id, submitted_at DESC, seq DESC
		) current_events
		GROUP BY note_id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(noteIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			noteID string
			score  int
		)
		if err := rows.Scan(&noteID, &score); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores[noteID] = score
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}

	return scores, nil
}

// RatedNoteIDs returns up to limit rated note IDs, most recently rated
// first. A non-positive limit returns all of them.
func (r *RatingRepository) RatedNoteIDs(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT note_id
		FROM rating_events
		GROUP BY note_id
		ORDER BY MAX(seq) DESC
		LIMIT $1
	`

	// LIMIT NULL is LIMIT ALL
	rows, err := r.db.QueryContext(ctx, query, sql.NullInt64{Int64: int64(limit), Valid: limit > 0})
	if err != nil {
		return nil, fmt.Errorf("failed to list rated notes: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan note id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rated notes: %w", err)
	}

	return ids, nil
}

func (r *RatingRepository) queryEvents(ctx context.Context, query string, args ...any) ([]models.RatingEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating events: %w", err)
	}
	defer rows.Close()

	events := []models.RatingEvent{}
	for rows.Next() {
		event, err := scanRatingEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rating event: %w", err)
		}
		events = append(events, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rating events: %w", err)
	}

	return events, nil
}

func scanRatingEvent(row rowScanner) (*models.RatingEvent, error) {
	event := &models.RatingEvent{}
	err := row.Scan(
		&event.Seq,
		&event.NoteID,
		&event.ParticipantID,
		&event.Value,
		&event.SubmittedAt,
		&event.AcceptedAt,
	)
	if err != nil {
		return nil, err
	}
	return event, nil
}
