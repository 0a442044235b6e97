package repository

import (
	"context"

	"notes-ledger/internal/models"
)

// ContentStore holds posts, notes and reviews. Records are created once and
// never updated or deleted.
type ContentStore interface {
	CreatePost(ctx context.Context, title, content, author string) (*models.Post, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	ListPosts(ctx context.Context, opts models.ListOptions) ([]models.Post, error)

	CreateNote(ctx context.Context, note models.Note) (*models.Note, error)
	GetNote(ctx context.Context, id string) (*models.Note, error)
	ListNotes(ctx context.Context, postID int64) ([]models.Note, error)

	CreateReview(ctx context.Context, review models.Review) (*models.Review, error)
	ListReviews(ctx context.Context, postID int64) ([]models.Review, error)
}

// RatingLedger is the append-only record of rating events
type RatingLedger interface {
	// Submit appends an event and reports whether it became the participant's
	// current event for the note.
	Submit(ctx context.Context, sub models.RatingSubmission) (*models.SubmitResult, error)
	// CurrentEventsFor returns each participant's current event for the note.
	CurrentEventsFor(ctx context.Context, noteID string) ([]models.RatingEvent, error)
	// ScoresOf sums current events for every note in one consistent snapshot.
	// Notes without ratings map to 0.
	ScoresOf(ctx context.Context, noteIDs []string) (map[string]int, error)
	// History returns every event recorded for the note in acceptance order.
	History(ctx context.Context, noteID string) ([]models.RatingEvent, error)
	// LastSeq returns the Seq of the note's latest event, 0 if it has none.
	// It changes on every accepted submission, whichever process made it.
	LastSeq(ctx context.Context, noteID string) (int64, error)
	// RatedNoteIDs returns up to limit note ids that have at least one event,
	// most recently rated first.
	RatedNoteIDs(ctx context.Context, limit int) ([]string, error)
}

// validatePost checks the required post fields
func validatePost(title, content, author string) error {
	switch {
	case title == "":
		return models.NewValidationError("title", "must not be empty")
	case content == "":
		return models.NewValidationError("content", "must not be empty")
	case author == "":
		return models.NewValidationError("author", "must not be empty")
	}
	return nil
}

func validateNote(note models.Note) error {
	switch {
	case note.AuthorParticipantID == "":
		return models.NewValidationError("noteAuthorParticipantId", "must not be empty")
	case note.Summary == "":
		return models.NewValidationError("summary", "must not be empty")
	}
	return nil
}

func validateReview(review models.Review) error {
	switch {
	case review.ReviewerID == "":
		return models.NewValidationError("reviewerId", "must not be empty")
	case review.Comment == "":
		return models.NewValidationError("reviewComment", "must not be empty")
	}
	return nil
}

func validateSubmission(sub models.RatingSubmission) error {
	switch {
	case sub.NoteID == "":
		return models.NewValidationError("noteId", "must not be empty")
	case sub.ParticipantID == "":
		return models.NewValidationError("participantId", "must not be empty")
	case !models.IsValidRating(sub.Value):
		return models.NewValidationError("value", "must be one of -1, 0, 1")
	}
	return nil
}
