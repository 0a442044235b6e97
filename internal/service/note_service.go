package service

import (
	"context"
	"fmt"
	"log/slog"

	"notes-ledger/internal/models"
	"notes-ledger/internal/repository"
)

// NoteInput is a note to attach to a post
type NoteInput struct {
	ID                  string
	AuthorParticipantID string
	Summary             string
	Classification      *string
}

// ReviewInput is a review to attach to a post
type ReviewInput struct {
	NoteID     *string
	ReviewerID string
	Comment    string
}

// NoteService ingests notes and reviews, either supplied by callers or
// written by the language model on behalf of personas
type NoteService struct {
	content   repository.ContentStore
	posts     *PostService
	generator TextGenerator
	personas  []Persona
}

// NewNoteService creates a new note service
func NewNoteService(content repository.ContentStore, posts *PostService, generator TextGenerator, personas []Persona) *NoteService {
	return &NoteService{
		content:   content,
		posts:     posts,
		generator: generator,
		personas:  personas,
	}
}

// AddNote attaches a note to an existing post
func (s *NoteService) AddNote(ctx context.Context, postID int64, in NoteInput) (*models.Note, error) {
	return s.content.CreateNote(ctx, models.Note{
		ID:                  in.ID,
		PostID:              postID,
		AuthorParticipantID: in.AuthorParticipantID,
		Summary:             in.Summary,
		Classification:      in.Classification,
	})
}

// AddReview attaches a review to an existing post
func (s *NoteService) AddReview(ctx context.Context, postID int64, in ReviewInput) (*models.Review, error) {
	return s.content.CreateReview(ctx, models.Review{
		PostID:     postID,
		NoteID:     in.NoteID,
		ReviewerID: in.ReviewerID,
		Comment:    in.Comment,
	})
}

// GenerateNotes asks every persona for a note on the post, then has every
// persona review each new note. A note is stored only once its text exists;
// a generation failure stops the run and returns ErrLLMUnavailable.
func (s *NoteService) GenerateNotes(ctx context.Context, postID int64) (*models.PostDetail, error) {
	post, err := s.content.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	var created []models.Note
	for _, persona := range s.personas {
		text, err := s.generator.Generate(ctx, NotePrompt(persona, post.Content))
		if err != nil {
			return nil, fmt.Errorf("failed to generate note for persona %s: %w", persona.Name, err)
		}

		note, err := s.content.CreateNote(ctx, models.Note{
			PostID:              postID,
			AuthorParticipantID: persona.Name,
			Summary:             text,
		})
		if err != nil {
			return nil, err
		}
		created = append(created, *note)
	}

	for _, note := range created {
		for _, persona := range s.personas {
			text, err := s.generator.Generate(ctx, ReviewPrompt(persona, note.Summary))
			if err != nil {
				return nil, fmt.Errorf("failed to generate review for persona %s: %w", persona.Name, err)
			}

			noteID := note.ID
			if _, err := s.content.CreateReview(ctx, models.Review{
				PostID:     postID,
				NoteID:     &noteID,
				ReviewerID: persona.Name,
				Comment:    text,
			}); err != nil {
				return nil, err
			}
		}
	}

	slog.Info("Generated persona notes", "post_id", postID, "notes", len(created), "personas", len(s.personas))

	return s.posts.GetPostDetail(ctx, postID)
}

// GenerateText passes a free-form prompt to the language model
func (s *NoteService) GenerateText(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", models.NewValidationError("prompt", "must not be empty")
	}
	return s.generator.Generate(ctx, prompt)
}
