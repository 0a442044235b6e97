package testutil

import (
	"context"
	"testing"

	"notes-ledger/internal/models"
	"notes-ledger/internal/repository"
)

// Fixtures holds test data
type Fixtures struct {
	Post  *models.Post
	Notes []models.Note
}

// SetupFixtures creates one post with the given number of notes
func SetupFixtures(t *testing.T, store repository.ContentStore, notes int) *Fixtures {
	t.Helper()

	fixtures := &Fixtures{Post: CreatePost(t, store, "Fixture post")}
	for i := 0; i < notes; i++ {
		fixtures.Notes = append(fixtures.Notes, *CreateNote(t, store, fixtures.Post.ID, "fixture note"))
	}
	return fixtures
}

// CreatePost creates a post with the given title
func CreatePost(t *testing.T, store repository.ContentStore, title string) *models.Post {
	t.Helper()

	post, err := store.CreatePost(context.Background(), title, "Content of "+title, "fixture-author")
	if err != nil {
		t.Fatalf("Failed to create post: %v", err)
	}
	return post
}

// CreateNote attaches a note to a post
func CreateNote(t *testing.T, store repository.ContentStore, postID int64, summary string) *models.Note {
	t.Helper()

	note, err := store.CreateNote(context.Background(), models.Note{
		PostID:              postID,
		AuthorParticipantID: "fixture-participant",
		Summary:             summary,
	})
	if err != nil {
		t.Fatalf("Failed to create note: %v", err)
	}
	return note
}

// Rate submits a rating and fails the test on error
func Rate(t *testing.T, ledger repository.RatingLedger, noteID, participantID string, value int) *models.SubmitResult {
	t.Helper()

	result, err := ledger.Submit(context.Background(), models.RatingSubmission{
		NoteID:        noteID,
		ParticipantID: participantID,
		Value:         value,
	})
	if err != nil {
		t.Fatalf("Failed to submit rating: %v", err)
	}
	return result
}
