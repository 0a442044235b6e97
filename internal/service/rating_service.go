package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"notes-ledger/internal/aggregator"
	"notes-ledger/internal/config"
	"notes-ledger/internal/metrics"
	"notes-ledger/internal/models"
	"notes-ledger/internal/repository"
)

// RateInput is a rating submission as received from a caller
type RateInput struct {
	NoteID        string
	ParticipantID string
	Value         int
	SubmittedAt   *time.Time // nil means now
}

// RatingService accepts rating submissions and serves note scores
type RatingService struct {
	content    repository.ContentStore
	ledger     repository.RatingLedger
	aggregator *aggregator.Aggregator
	cfg        config.RatingConfig
	now        func() time.Time
}

// NewRatingService creates a new rating service
func NewRatingService(content repository.ContentStore, ledger repository.RatingLedger, agg *aggregator.Aggregator, cfg config.RatingConfig) *RatingService {
	return &RatingService{
		content:    content,
		ledger:     ledger,
		aggregator: agg,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Rate records a participant's rating of a note and returns the note's
// refreshed score. Ledger conflicts are retried up to the configured limit.
func (s *RatingService) Rate(ctx context.Context, in RateInput) (*models.RatingResult, error) {
	sub := models.RatingSubmission{
		NoteID:        in.NoteID,
		ParticipantID: in.ParticipantID,
		Value:         in.Value,
	}
	if in.SubmittedAt != nil {
		if in.SubmittedAt.After(s.now().Add(s.cfg.MaxClockSkew)) {
			return nil, models.NewValidationError("submittedAt", "must not be in the future")
		}
		sub.SubmittedAt = in.SubmittedAt.UTC()
	}

	var (
		result *models.SubmitResult
		score  int
		err    error
	)
	for attempt := 0; ; attempt++ {
		result, score, err = s.aggregator.Submit(ctx, sub)
		if err == nil || !models.IsConflict(err) || attempt >= s.cfg.MaxRetries {
			break
		}

		metrics.RatingConflictRetries.Inc()
		slog.Debug("Retrying conflicting rating submission", "note_id", sub.NoteID, "attempt", attempt+1)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.RetryBackoff * time.Duration(attempt+1)):
		}
	}
	if err != nil {
		return nil, err
	}

	return &models.RatingResult{
		NoteID:  sub.NoteID,
		Score:   score,
		Current: result.Current,
		Event:   result.Event,
	}, nil
}

// Score returns the current score and rater count of a note
func (s *RatingService) Score(ctx context.Context, noteID string) (*models.NoteScore, error) {
	if noteID == "" {
		return nil, models.NewValidationError("noteId", "must not be empty")
	}
	if _, err := s.content.GetNote(ctx, noteID); err != nil {
		return nil, err
	}

	score, err := s.aggregator.Tally(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get score of note %s: %w", noteID, err)
	}
	return &score, nil
}

// History returns every rating event of a note with its current status
func (s *RatingService) History(ctx context.Context, noteID string) ([]models.RatingHistoryEntry, error) {
	if _, err := s.content.GetNote(ctx, noteID); err != nil {
		return nil, err
	}

	events, err := s.ledger.History(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rating history of note %s: %w", noteID, err)
	}
	return aggregator.MarkCurrent(events), nil
}
