package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"notes-ledger/internal/models"
)

type ratingKey struct {
	noteID        string
	participantID string
}

// MemoryStore is an in-process ContentStore and RatingLedger. A single
// read-write lock covers all state, so every read sees one snapshot and
// sequence numbers follow acceptance order.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	posts        []models.Post
	postIndex    map[int64]int
	notes        map[string]models.Note
	notesByPost  map[int64][]string
	reviews      map[int64][]models.Review
	nextPostID   int64
	nextReviewID int64

	seq          int64
	events       []models.RatingEvent
	eventsByNote map[string][]int
	current      map[ratingKey]int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:          func() time.Time { return time.Now().UTC() },
		postIndex:    make(map[int64]int),
		notes:        make(map[string]models.Note),
		notesByPost:  make(map[int64][]string),
		reviews:      make(map[int64][]models.Review),
		eventsByNote: make(map[string][]int),
		current:      make(map[ratingKey]int),
	}
}

// SetClock replaces the clock used for creation and acceptance timestamps
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// CreatePost creates a new post
func (s *MemoryStore) CreatePost(_ context.Context, title, content, author string) (*models.Post, error) {
	if err := validatePost(title, content, author); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPostID++
	post := models.Post{
		ID:        s.nextPostID,
		Title:     title,
		Content:   content,
		Author:    author,
		CreatedAt: s.now(),
	}
	s.postIndex[post.ID] = len(s.posts)
	s.posts = append(s.posts, post)

	return &post, nil
}

// GetPost retrieves a post by ID
func (s *MemoryStore) GetPost(_ context.Context, id int64) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.postIndex[id]
	if !ok {
		return nil, models.NewNotFoundError("post", id)
	}
	post := s.posts[i]
	return &post, nil
}

// ListPosts lists posts in creation order. Posts are appended with
// increasing IDs and timestamps, so slice order is creation order.
func (s *MemoryStore) ListPosts(_ context.Context, opts models.ListOptions) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if opts.AfterID > 0 {
		i, ok := s.postIndex[opts.AfterID]
		if !ok {
			return []models.Post{}, nil
		}
		start = i + 1
	}

	end := len(s.posts)
	if opts.Limit > 0 && opts.Limit < end-start {
		end = start + opts.Limit
	}

	return slices.Clone(s.posts[start:end]), nil
}

// CreateNote attaches a note to an existing post
func (s *MemoryStore) CreateNote(_ context.Context, note models.Note) (*models.Note, error) {
	if err := validateNote(note); err != nil {
		return nil, err
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.postIndex[note.PostID]; !ok {
		return nil, models.NewNotFoundError("post", note.PostID)
	}
	if _, exists := s.notes[note.ID]; exists {
		return nil, &models.ConflictError{Resource: "note", Reason: fmt.Sprintf("note %s already exists", note.ID)}
	}

	note.CreatedAt = s.now()
	s.notes[note.ID] = note
	s.notesByPost[note.PostID] = append(s.notesByPost[note.PostID], note.ID)

	return &note, nil
}

// GetNote retrieves a note by ID
func (s *MemoryStore) GetNote(_ context.Context, id string) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.notes[id]
	if !ok {
		return nil, models.NewNotFoundError("note", id)
	}
	return &note, nil
}

// ListNotes lists the notes of a post in creation order
func (s *MemoryStore) ListNotes(_ context.Context, postID int64) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.postIndex[postID]; !ok {
		return nil, models.NewNotFoundError("post", postID)
	}

	notes := make([]models.Note, 0, len(s.notesByPost[postID]))
	for _, id := range s.notesByPost[postID] {
		notes = append(notes, s.notes[id])
	}
	return notes, nil
}

// CreateReview attaches a review to an existing post
func (s *MemoryStore) CreateReview(_ context.Context, review models.Review) (*models.Review, error) {
	if err := validateReview(review); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.postIndex[review.PostID]; !ok {
		return nil, models.NewNotFoundError("post", review.PostID)
	}
	if review.NoteID != nil {
		note, ok := s.notes[*review.NoteID]
		if !ok {
			return nil, models.NewNotFoundError("note", *review.NoteID)
		}
		if note.PostID != review.PostID {
			return nil, models.NewValidationError("noteId", "note belongs to a different post")
		}
	}

	s.nextReviewID++
	review.ID = s.nextReviewID
	review.CreatedAt = s.now()
	s.reviews[review.PostID] = append(s.reviews[review.PostID], review)

	return &review, nil
}

// ListReviews lists the reviews of a post in creation order
func (s *MemoryStore) ListReviews(_ context.Context, postID int64) ([]models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.postIndex[postID]; !ok {
		return nil, models.NewNotFoundError("post", postID)
	}

	reviews := slices.Clone(s.reviews[postID])
	if reviews == nil {
		reviews = []models.Review{}
	}
	return reviews, nil
}

// Submit appends a rating event. A zero SubmittedAt takes the acceptance time.
func (s *MemoryStore) Submit(_ context.Context, sub models.RatingSubmission) (*models.SubmitResult, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[sub.NoteID]; !ok {
		return nil, models.NewNotFoundError("note", sub.NoteID)
	}

	var priorSeq int64
	if idxs := s.eventsByNote[sub.NoteID]; len(idxs) > 0 {
		priorSeq = s.events[idxs[len(idxs)-1]].Seq
	}

	s.seq++
	acceptedAt := s.now()
	event := models.RatingEvent{
		Seq:           s.seq,
		NoteID:        sub.NoteID,
		ParticipantID: sub.ParticipantID,
		Value:         sub.Value,
		SubmittedAt:   sub.SubmittedAt,
		AcceptedAt:    acceptedAt,
	}
	if event.SubmittedAt.IsZero() {
		event.SubmittedAt = acceptedAt
	}

	idx := len(s.events)
	s.events = append(s.events, event)
	s.eventsByNote[sub.NoteID] = append(s.eventsByNote[sub.NoteID], idx)

	key := ratingKey{noteID: sub.NoteID, participantID: sub.ParticipantID}
	result := &models.SubmitResult{Event: event, Current: true, PriorSeq: priorSeq}
	if prevIdx, ok := s.current[key]; ok {
		previous := s.events[prevIdx]
		result.Previous = &previous
		result.Current = event.Supersedes(previous)
	}
	if result.Current {
		s.current[key] = idx
	}

	return result, nil
}

// CurrentEventsFor returns each participant's current event for the note
func (s *MemoryStore) CurrentEventsFor(_ context.Context, noteID string) ([]models.RatingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.currentEventsLocked(noteID), nil
}

func (s *MemoryStore) currentEventsLocked(noteID string) []models.RatingEvent {
	events := []models.RatingEvent{}
	for _, idx := range s.eventsByNote[noteID] {
		event := s.events[idx]
		if s.current[ratingKey{noteID: noteID, participantID: event.ParticipantID}] == idx {
			events = append(events, event)
		}
	}
	return events
}

// LastSeq returns the Seq of the note's latest event
func (s *MemoryStore) LastSeq(_ context.Context, noteID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idxs := s.eventsByNote[noteID]
	if len(idxs) == 0 {
		return 0, nil
	}
	return s.events[idxs[len(idxs)-1]].Seq, nil
}

// ScoresOf sums current events for every note under one read lock
func (s *MemoryStore) ScoresOf(_ context.Context, noteIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scores := make(map[string]int, len(noteIDs))
	for _, id := range noteIDs {
		score := 0
		for _, event := range s.currentEventsLocked(id) {
			score += event.Value
		}
		scores[id] = score
	}
	return scores, nil
}

// History returns every event recorded for the note in acceptance order
func (s *MemoryStore) History(_ context.Context, noteID string) ([]models.RatingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]models.RatingEvent, 0, len(s.eventsByNote[noteID]))
	for _, idx := range s.eventsByNote[noteID] {
		events = append(events, s.events[idx])
	}
	return events, nil
}

// RatedNoteIDs returns up to limit rated note IDs, most recently rated first
func (s *MemoryStore) RatedNoteIDs(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []string{}
	seen := make(map[string]bool)
	for i := len(s.events) - 1; i >= 0 && (limit <= 0 || len(ids) < limit); i-- {
		id := s.events[i].NoteID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
