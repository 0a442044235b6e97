package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notes-ledger/internal/config"
	"notes-ledger/internal/models"
	"notes-ledger/internal/repository"
	"notes-ledger/internal/testutil"
)

const sampleImport = `
posts:
  - title: Claim
    content: The moon is made of cheese
    author: alice
    notes:
      - id: note-1
        author: bob
        summary: It is made of rock
        ratings:
          - participant: carol
            value: 1
          - participant: dave
            value: 1
          - participant: carol
            value: -1
      - author: erin
        summary: Cheese is plausible
        classification: misleading
    reviews:
      - note: note-1
        reviewer: frank
        comment: Correct
      - reviewer: grace
        comment: General remark
  - title: Second
    content: Nothing to see
    author: heidi
`

func newTestApp(t *testing.T) (*app, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	return newApp(&repository.Stores{Content: store, Ledger: store}, &config.Config{}), store
}

func TestImportContent(t *testing.T) {
	ctx := context.Background()
	a, store := newTestApp(t)

	file, err := parseImport(strings.NewReader(sampleImport))
	require.NoError(t, err)

	summary, err := importContent(ctx, a, file)
	require.NoError(t, err)
	assert.Equal(t, importSummary{Posts: 2, Notes: 2, Reviews: 2, Ratings: 3}, summary)

	// carol's second rating supersedes her first
	score, err := a.agg.ScoreOf(ctx, "note-1")
	require.NoError(t, err)
	assert.Equal(t, 0, score)

	posts, err := store.ListPosts(ctx, models.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestImportStopsAtFirstError(t *testing.T) {
	a, _ := newTestApp(t)

	file, err := parseImport(strings.NewReader(`
posts:
  - title: Claim
    content: Body
    author: alice
    reviews:
      - note: missing-note
        reviewer: frank
        comment: Dangling
`))
	require.NoError(t, err)

	summary, err := importContent(context.Background(), a, file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "post 1 review 1")
	assert.Equal(t, importSummary{Posts: 1}, summary)
}

func TestImportRejectsRatingWithoutValue(t *testing.T) {
	a, _ := newTestApp(t)

	file, err := parseImport(strings.NewReader(`
posts:
  - title: Claim
    content: Body
    author: alice
    notes:
      - id: note-1
        author: bob
        summary: Context
        ratings:
          - participant: carol
            value: 0
          - participant: dave
`))
	require.NoError(t, err)

	summary, err := importContent(context.Background(), a, file)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "value", verr.Field)
	assert.Contains(t, err.Error(), "post 1 note 1 rating 2")
	assert.Equal(t, importSummary{Posts: 1, Notes: 1, Ratings: 1}, summary)

	history, err := a.ratings.History(context.Background(), "note-1")
	require.NoError(t, err)
	require.Len(t, history, 1, "the rating without a value is not recorded")
	assert.Equal(t, "carol", history[0].ParticipantID)
}

func TestParseImportRejectsUnknownFields(t *testing.T) {
	_, err := parseImport(strings.NewReader("posts:\n  - title: x\n    body: y\n"))
	assert.Error(t, err)

	file, err := parseImport(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, file.Posts)
}

func TestVerifyScoresClean(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	fx := testutil.SetupFixtures(t, store, 2)
	testutil.Rate(t, store, fx.Notes[0].ID, "p1", 1)
	testutil.Rate(t, store, fx.Notes[0].ID, "p2", -1)
	testutil.Rate(t, store, fx.Notes[1].ID, "p1", 1)

	checked, mismatches, err := verifyScores(ctx, store, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, checked)
	assert.Empty(t, mismatches)
}

// skewedLedger reports a wrong batched score for one note
type skewedLedger struct {
	repository.RatingLedger
	noteID string
}

func (l skewedLedger) ScoresOf(ctx context.Context, noteIDs []string) (map[string]int, error) {
	scores, err := l.RatingLedger.ScoresOf(ctx, noteIDs)
	if err != nil {
		return nil, err
	}
	scores[l.noteID] += 5
	return scores, nil
}

func TestVerifyScoresReportsMismatch(t *testing.T) {
	store := repository.NewMemoryStore()
	fx := testutil.SetupFixtures(t, store, 2)
	testutil.Rate(t, store, fx.Notes[0].ID, "p1", 1)
	testutil.Rate(t, store, fx.Notes[1].ID, "p1", 1)

	checked, mismatches, err := verifyScores(context.Background(), skewedLedger{store, fx.Notes[1].ID}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, checked)
	assert.Equal(t, []scoreMismatch{{NoteID: fx.Notes[1].ID, Snapshot: 6, Recomputed: 1}}, mismatches)
}

func TestKeygenAndTokenCommands(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")

	var keyOut bytes.Buffer
	rootCmd.SetOut(&keyOut)
	rootCmd.SetArgs([]string{"keygen"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, keyOut.String(), "BEGIN EC PRIVATE KEY")

	t.Setenv("JWT_SECRET", keyOut.String())

	var tokenOut bytes.Buffer
	rootCmd.SetOut(&tokenOut)
	rootCmd.SetArgs([]string{"token", "--participant", "alice"})
	require.NoError(t, rootCmd.Execute())
	assert.Len(t, strings.Split(strings.TrimSpace(tokenOut.String()), "."), 3)
}
