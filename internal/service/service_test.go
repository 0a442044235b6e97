package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notes-ledger/internal/aggregator"
	"notes-ledger/internal/config"
	"notes-ledger/internal/models"
	"notes-ledger/internal/repository"
	"notes-ledger/internal/service"
	"notes-ledger/internal/testutil"
)

var testRatingConfig = config.RatingConfig{
	ScoreCache:   true,
	MaxRetries:   3,
	RetryBackoff: time.Millisecond,
	MaxClockSkew: time.Minute,
	LockStripes:  16,
}

type services struct {
	store   *repository.MemoryStore
	posts   *service.PostService
	ratings *service.RatingService
}

func newServices(t *testing.T, ledger repository.RatingLedger) *services {
	t.Helper()
	store := repository.NewMemoryStore()
	if ledger == nil {
		ledger = store
	}
	agg := aggregator.New(ledger, aggregator.Options{CacheEnabled: true, Stripes: 16})
	return &services{
		store:   store,
		posts:   service.NewPostService(store, agg),
		ratings: service.NewRatingService(store, ledger, agg, testRatingConfig),
	}
}

func TestCreatePostReturnsEmptyDetail(t *testing.T) {
	svc := newServices(t, nil)

	detail, err := svc.posts.CreatePost(context.Background(), "T", "C", "A")
	require.NoError(t, err)
	assert.NotZero(t, detail.Post.ID)
	assert.Equal(t, "T", detail.Post.Title)
	assert.NotNil(t, detail.Notes)
	assert.Empty(t, detail.Notes)
	assert.NotNil(t, detail.Reviews)
	assert.Empty(t, detail.Reviews)

	_, err = svc.posts.CreatePost(context.Background(), "T", "C", "")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "author", verr.Field)
}

func TestUnratedNoteScoresZero(t *testing.T) {
	svc := newServices(t, nil)
	fx := testutil.SetupFixtures(t, svc.store, 1)

	score, err := svc.ratings.Score(context.Background(), fx.Notes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.NoteScore{NoteID: fx.Notes[0].ID}, *score)
}

func TestOpposingRatingsCancel(t *testing.T) {
	svc := newServices(t, nil)
	ctx := context.Background()
	noteID := testutil.SetupFixtures(t, svc.store, 1).Notes[0].ID

	_, err := svc.ratings.Rate(ctx, service.RateInput{NoteID: noteID, ParticipantID: "P1", Value: 1})
	require.NoError(t, err)
	res, err := svc.ratings.Rate(ctx, service.RateInput{NoteID: noteID, ParticipantID: "P2", Value: -1})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)

	score, err := svc.ratings.Score(ctx, noteID)
	require.NoError(t, err)
	assert.Equal(t, 0, score.Score)
	assert.Equal(t, 2, score.Raters)
}

func TestReRatingSupersedes(t *testing.T) {
	svc := newServices(t, nil)
	ctx := context.Background()
	noteID := testutil.SetupFixtures(t, svc.store, 1).Notes[0].ID
	at := time.Now().Add(-time.Hour)

	first := at
	_, err := svc.ratings.Rate(ctx, service.RateInput{NoteID: noteID, ParticipantID: "P1", Value: 1, SubmittedAt: &first})
	require.NoError(t, err)

	second := at.Add(time.Second)
	res, err := svc.ratings.Rate(ctx, service.RateInput{NoteID: noteID, ParticipantID: "P1", Value: -1, SubmittedAt: &second})
	require.NoError(t, err)
	assert.Equal(t, -1, res.Score)
	assert.True(t, res.Current)

	again, err := svc.ratings.Rate(ctx, service.RateInput{NoteID: noteID, ParticipantID: "P1", Value: -1})
	require.NoError(t, err)
	assert.Equal(t, -1, again.Score, "repeating a rating leaves the score unchanged")

	history, err := svc.ratings.History(ctx, noteID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.False(t, history[0].Current)
	assert.False(t, history[1].Current)
	assert.True(t, history[2].Current)
}

func TestGetPostDetail(t *testing.T) {
	svc := newServices(t, nil)
	ctx := context.Background()

	_, err := svc.posts.GetPostDetail(ctx, 12345)
	assert.True(t, models.IsNotFound(err), "a missing post is an error, not an empty post")

	fx := testutil.SetupFixtures(t, svc.store, 2)
	_, err = svc.ratings.Rate(ctx, service.RateInput{NoteID: fx.Notes[1].ID, ParticipantID: "P1", Value: 1})
	require.NoError(t, err)
	_, err = svc.store.CreateReview(ctx, models.Review{PostID: fx.Post.ID, ReviewerID: "r1", Comment: "ok"})
	require.NoError(t, err)

	detail, err := svc.posts.GetPostDetail(ctx, fx.Post.ID)
	require.NoError(t, err)
	require.Len(t, detail.Notes, 2)
	assert.Equal(t, 0, detail.Notes[0].Score)
	assert.Equal(t, 1, detail.Notes[1].Score)
	assert.Len(t, detail.Reviews, 1)
}

func TestListPosts(t *testing.T) {
	svc := newServices(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.posts.CreatePost(ctx, fmt.Sprintf("post %d", i), "c", "a")
		require.NoError(t, err)
	}

	posts, err := svc.posts.ListPosts(ctx, models.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	_, err = svc.posts.ListPosts(ctx, models.ListOptions{Limit: -1})
	assert.True(t, models.IsValidation(err))
}

func TestConcurrentRatingsBothCounted(t *testing.T) {
	svc := newServices(t, nil)
	ctx := context.Background()
	noteID := testutil.SetupFixtures(t, svc.store, 1).Notes[0].ID

	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, p := range []string{"P1", "P2"} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			<-start
			_, err := svc.ratings.Rate(ctx, service.RateInput{NoteID: noteID, ParticipantID: p, Value: 1})
			assert.NoError(t, err)
		}(p)
	}
	close(start)
	wg.Wait()

	score, err := svc.ratings.Score(ctx, noteID)
	require.NoError(t, err)
	assert.Equal(t, 2, score.Score)
	assert.Equal(t, 2, score.Raters)

	history, err := svc.ratings.History(ctx, noteID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRateValidation(t *testing.T) {
	svc := newServices(t, nil)
	ctx := context.Background()
	noteID := testutil.SetupFixtures(t, svc.store, 1).Notes[0].ID
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name  string
		in    service.RateInput
		field string
	}{
		{"value out of range", service.RateInput{NoteID: noteID, ParticipantID: "P1", Value: 2}, "value"},
		{"missing participant", service.RateInput{NoteID: noteID, Value: 1}, "participantId"},
		{"missing note", service.RateInput{ParticipantID: "P1", Value: 1}, "noteId"},
		{"future timestamp", service.RateInput{NoteID: noteID, ParticipantID: "P1", Value: 1, SubmittedAt: &future}, "submittedAt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ratings.Rate(ctx, tt.in)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	_, err := svc.ratings.Rate(ctx, service.RateInput{NoteID: "unknown", ParticipantID: "P1", Value: 1})
	assert.True(t, models.IsNotFound(err))
	_, err = svc.ratings.Score(ctx, "unknown")
	assert.True(t, models.IsNotFound(err))
	_, err = svc.ratings.History(ctx, "unknown")
	assert.True(t, models.IsNotFound(err))
}

// conflictingLedger fails the first n submissions with a conflict
type conflictingLedger struct {
	*repository.MemoryStore
	remaining atomic.Int32
	attempts  atomic.Int32
}

func (l *conflictingLedger) Submit(ctx context.Context, sub models.RatingSubmission) (*models.SubmitResult, error) {
	l.attempts.Add(1)
	if l.remaining.Add(-1) >= 0 {
		return nil, &models.ConflictError{Resource: "rating", Reason: "serialization failure"}
	}
	return l.MemoryStore.Submit(ctx, sub)
}

func TestRateRetriesConflicts(t *testing.T) {
	store := repository.NewMemoryStore()
	noteID := testutil.SetupFixtures(t, store, 1).Notes[0].ID
	ctx := context.Background()

	ledger := &conflictingLedger{MemoryStore: store}
	ledger.remaining.Store(2)
	agg := aggregator.New(ledger, aggregator.Options{CacheEnabled: true})
	ratings := service.NewRatingService(store, ledger, agg, testRatingConfig)

	res, err := ratings.Rate(ctx, service.RateInput{NoteID: noteID, ParticipantID: "P1", Value: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, int32(3), ledger.attempts.Load())

	ledger.remaining.Store(10)
	ledger.attempts.Store(0)
	_, err = ratings.Rate(ctx, service.RateInput{NoteID: noteID, ParticipantID: "P2", Value: 1})
	assert.True(t, models.IsConflict(err), "conflicts surface once retries are exhausted")
	assert.Equal(t, int32(testRatingConfig.MaxRetries+1), ledger.attempts.Load())

	history, err := store.History(ctx, noteID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "failed attempts leave no events behind")
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	failOn  string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failOn != "" && strings.Contains(prompt, g.failOn) {
		return "", service.ErrLLMUnavailable
	}
	g.prompts = append(g.prompts, prompt)
	return fmt.Sprintf("generated %d", len(g.prompts)), nil
}

func TestGenerateNotes(t *testing.T) {
	svc := newServices(t, nil)
	ctx := context.Background()
	gen := &fakeGenerator{}
	personas := service.Personas([]string{"The Skeptic", "The Historian"})
	notes := service.NewNoteService(svc.store, svc.posts, gen, personas)

	post := testutil.CreatePost(t, svc.store, "claims")

	detail, err := notes.GenerateNotes(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, detail.Notes, 2)
	assert.Equal(t, "The Skeptic", detail.Notes[0].AuthorParticipantID)
	assert.Equal(t, "The Historian", detail.Notes[1].AuthorParticipantID)
	assert.Len(t, detail.Reviews, 4, "every persona reviews every generated note")
	for _, review := range detail.Reviews {
		require.NotNil(t, review.NoteID)
	}
	assert.Len(t, gen.prompts, 6)
	assert.Contains(t, gen.prompts[0], "Content of claims")

	_, err = notes.GenerateNotes(ctx, 999)
	assert.True(t, models.IsNotFound(err))
}

func TestGenerateNotesStopsOnUnavailableModel(t *testing.T) {
	svc := newServices(t, nil)
	ctx := context.Background()
	gen := &fakeGenerator{failOn: "The Historian"}
	notes := service.NewNoteService(svc.store, svc.posts, gen, service.Personas([]string{"The Skeptic", "The Historian"}))

	post := testutil.CreatePost(t, svc.store, "claims")
	_, err := notes.GenerateNotes(ctx, post.ID)
	assert.True(t, errors.Is(err, service.ErrLLMUnavailable))

	stored, err := svc.store.ListNotes(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1, "only notes with generated text are stored")
	assert.Equal(t, "The Skeptic", stored[0].AuthorParticipantID)
}

func TestAddNoteAndReview(t *testing.T) {
	svc := newServices(t, nil)
	ctx := context.Background()
	notes := service.NewNoteService(svc.store, svc.posts, &fakeGenerator{}, nil)
	post := testutil.CreatePost(t, svc.store, "manual")

	classification := "MISINFORMED_OR_POTENTIALLY_MISLEADING"
	note, err := notes.AddNote(ctx, post.ID, service.NoteInput{ID: "note-1", AuthorParticipantID: "p1", Summary: "context", Classification: &classification})
	require.NoError(t, err)
	assert.Equal(t, "note-1", note.ID)

	review, err := notes.AddReview(ctx, post.ID, service.ReviewInput{NoteID: &note.ID, ReviewerID: "r1", Comment: "correct"})
	require.NoError(t, err)
	assert.Equal(t, "note-1", *review.NoteID)

	_, err = notes.AddNote(ctx, 999, service.NoteInput{AuthorParticipantID: "p1", Summary: "x"})
	assert.True(t, models.IsNotFound(err))

	_, err = notes.GenerateText(ctx, "")
	assert.True(t, models.IsValidation(err))
}
