package service

import (
	"context"
	"fmt"

	"notes-ledger/internal/aggregator"
	"notes-ledger/internal/models"
	"notes-ledger/internal/repository"
)

// PostService handles business logic for posts and their detail views
type PostService struct {
	content    repository.ContentStore
	aggregator *aggregator.Aggregator
}

// NewPostService creates a new post service
func NewPostService(content repository.ContentStore, agg *aggregator.Aggregator) *PostService {
	return &PostService{
		content:    content,
		aggregator: agg,
	}
}

// CreatePost creates a post. Notes and reviews arrive separately, so both
// lists in the result are empty.
func (s *PostService) CreatePost(ctx context.Context, title, content, author string) (*models.PostDetail, error) {
	post, err := s.content.CreatePost(ctx, title, content, author)
	if err != nil {
		return nil, err
	}

	return &models.PostDetail{
		Post:    *post,
		Notes:   []models.NoteWithScore{},
		Reviews: []models.Review{},
	}, nil
}

// ListPosts lists posts in creation order
func (s *PostService) ListPosts(ctx context.Context, opts models.ListOptions) ([]models.Post, error) {
	if opts.Limit < 0 {
		return nil, models.NewValidationError("limit", "must not be negative")
	}
	return s.content.ListPosts(ctx, opts)
}

// GetPostDetail returns a post with its notes, each scored from one ledger
// snapshot, and its reviews
func (s *PostService) GetPostDetail(ctx context.Context, postID int64) (*models.PostDetail, error) {
	post, err := s.content.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	notes, err := s.content.ListNotes(ctx, postID)
	if err != nil {
		return nil, err
	}

	reviews, err := s.content.ListReviews(ctx, postID)
	if err != nil {
		return nil, err
	}

	noteIDs := make([]string, len(notes))
	for i, note := range notes {
		noteIDs[i] = note.ID
	}

	scores, err := s.aggregator.ScoresOf(ctx, noteIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to score notes of post %d: %w", postID, err)
	}

	scored := make([]models.NoteWithScore, len(notes))
	for i, note := range notes {
		scored[i] = models.NoteWithScore{Note: note, Score: scores[note.ID]}
	}

	return &models.PostDetail{
		Post:    *post,
		Notes:   scored,
		Reviews: reviews,
	}, nil
}
