// Package aggregator derives note scores from the rating ledger and keeps a
// process-wide cache of them.
//
// The score of a note is SumCurrent over the note's current events. Cached
// scores are updated inside the same per-note critical section as the ledger
// write that changes them, so a reader sees either the score before a
// submission or the score after it. Each entry records the ledger's latest
// event Seq for the note. An entry is only served while that watermark still
// matches the ledger, so writes from other processes sharing the ledger are
// never hidden by a stale entry.
package aggregator

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"notes-ledger/internal/metrics"
	"notes-ledger/internal/models"
	"notes-ledger/internal/repository"
)

// DefaultStripes is the number of note lock stripes used when none is configured
const DefaultStripes = 256

// Options configures an Aggregator
type Options struct {
	// CacheEnabled keeps computed scores in memory
	CacheEnabled bool
	Stripes      int
}

// Aggregator computes note scores from a RatingLedger
type Aggregator struct {
	ledger       repository.RatingLedger
	cacheEnabled bool
	stripes      []sync.Mutex

	mu    sync.RWMutex
	cache map[string]cacheEntry

	fill singleflight.Group
}

// New creates an aggregator with an empty cache
func New(ledger repository.RatingLedger, opts Options) *Aggregator {
	if opts.Stripes < 1 {
		opts.Stripes = DefaultStripes
	}
	return &Aggregator{
		ledger:       ledger,
		cacheEnabled: opts.CacheEnabled,
		stripes:      make([]sync.Mutex, opts.Stripes),
		cache:        make(map[string]cacheEntry),
	}
}

// cacheEntry is a cached score and the note's latest event Seq it reflects
type cacheEntry struct {
	score models.NoteScore
	seq   int64
}

// SumCurrent returns the score for a set of current events
func SumCurrent(events []models.RatingEvent) int {
	score := 0
	for _, e := range events {
		score += e.Value
	}
	return score
}

// MarkCurrent annotates a note's full event history with each event's
// current status, derived from the supersession order alone
func MarkCurrent(history []models.RatingEvent) []models.RatingHistoryEntry {
	latest := make(map[string]models.RatingEvent)
	for _, e := range history {
		if prev, ok := latest[e.ParticipantID]; !ok || e.Supersedes(prev) {
			latest[e.ParticipantID] = e
		}
	}

	entries := make([]models.RatingHistoryEntry, len(history))
	for i, e := range history {
		entries[i] = models.RatingHistoryEntry{
			RatingEvent: e,
			Current:     latest[e.ParticipantID].Seq == e.Seq,
		}
	}
	return entries
}

func tally(noteID string, events []models.RatingEvent) models.NoteScore {
	return models.NoteScore{NoteID: noteID, Score: SumCurrent(events), Raters: len(events)}
}

// lock acquires the stripe guarding noteID and returns its release func
func (a *Aggregator) lock(noteID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(noteID))
	m := &a.stripes[h.Sum32()%uint32(len(a.stripes))]
	m.Lock()
	return m.Unlock
}

// Submit records a rating and returns the note's score after it
func (a *Aggregator) Submit(ctx context.Context, sub models.RatingSubmission) (*models.SubmitResult, int, error) {
	unlock := a.lock(sub.NoteID)
	defer unlock()

	start := time.Now()
	defer func() { metrics.RatingSubmitDuration.Observe(time.Since(start).Seconds()) }()

	result, err := a.ledger.Submit(ctx, sub)
	if err != nil {
		metrics.RatingSubmissions.WithLabelValues(outcome(err)).Inc()
		if !models.IsValidation(err) && !models.IsNotFound(err) {
			// The write may have landed anyway
			a.Invalidate(sub.NoteID)
		}
		return nil, 0, err
	}
	if result.Current {
		metrics.RatingSubmissions.WithLabelValues("current").Inc()
	} else {
		metrics.RatingSubmissions.WithLabelValues("stale").Inc()
	}

	if a.cacheEnabled {
		a.mu.Lock()
		entry, ok := a.cache[sub.NoteID]
		// Apply the delta only to an entry that reflects the ledger right
		// before this write
		ok = ok && entry.seq == result.PriorSeq
		if ok {
			entry.score.Score += result.Delta()
			if result.Current && result.Previous == nil {
				entry.score.Raters++
			}
			entry.seq = result.Event.Seq
			a.cache[sub.NoteID] = entry
		}
		a.mu.Unlock()
		if ok {
			return result, entry.score.Score, nil
		}
	}

	score, err := a.recomputeLocked(ctx, sub.NoteID)
	if err != nil {
		return result, 0, fmt.Errorf("rating %d recorded but score unavailable: %w", result.Event.Seq, err)
	}
	return result, score.Score, nil
}

// ScoreOf returns the note's current score. Notes without ratings score 0.
func (a *Aggregator) ScoreOf(ctx context.Context, noteID string) (int, error) {
	score, err := a.Tally(ctx, noteID)
	if err != nil {
		return 0, err
	}
	return score.Score, nil
}

// Tally returns the note's score together with its number of raters
func (a *Aggregator) Tally(ctx context.Context, noteID string) (models.NoteScore, error) {
	if !a.cacheEnabled {
		return a.recompute(ctx, noteID)
	}

	entry, state, err := a.current(ctx, noteID)
	if err != nil {
		return models.NoteScore{}, err
	}
	metrics.ScoreCacheLookups.WithLabelValues(state).Inc()
	if state == lookupHit {
		return entry.score, nil
	}

	v, err, _ := a.fill.Do(noteID, func() (any, error) {
		unlock := a.lock(noteID)
		defer unlock()

		// A submission may have refreshed the entry while we waited for the stripe
		if entry, state, err := a.current(ctx, noteID); err != nil || state == lookupHit {
			return entry.score, err
		}
		return a.recomputeLocked(ctx, noteID)
	})
	if err != nil {
		return models.NoteScore{}, err
	}
	return v.(models.NoteScore), nil
}

// Recompute sums the note's current events straight from the ledger,
// bypassing and leaving untouched the cache
func (a *Aggregator) Recompute(ctx context.Context, noteID string) (int, error) {
	score, err := a.recompute(ctx, noteID)
	if err != nil {
		return 0, err
	}
	return score.Score, nil
}

func (a *Aggregator) recompute(ctx context.Context, noteID string) (models.NoteScore, error) {
	events, err := a.ledger.CurrentEventsFor(ctx, noteID)
	if err != nil {
		return models.NoteScore{}, fmt.Errorf("failed to recompute score: %w", err)
	}
	metrics.ScoreRecomputations.Inc()
	return tally(noteID, events), nil
}

// Cache lookup results
const (
	lookupHit   = "hit"
	lookupStale = "stale"
	lookupMiss  = "miss"
)

// current returns the cached entry of a note and whether its watermark still
// matches the ledger
func (a *Aggregator) current(ctx context.Context, noteID string) (cacheEntry, string, error) {
	entry, ok := a.cached(noteID)
	if !ok {
		return cacheEntry{}, lookupMiss, nil
	}

	seq, err := a.ledger.LastSeq(ctx, noteID)
	if err != nil {
		return cacheEntry{}, "", fmt.Errorf("failed to check cached score: %w", err)
	}
	if seq != entry.seq {
		return cacheEntry{}, lookupStale, nil
	}
	return entry, lookupHit, nil
}

// recomputeLocked recomputes and stores the score. The caller holds the
// note's stripe.
func (a *Aggregator) recomputeLocked(ctx context.Context, noteID string) (models.NoteScore, error) {
	if !a.cacheEnabled {
		return a.recompute(ctx, noteID)
	}

	// Read the watermark first. A write landing between the two reads leaves
	// an entry older than its events, which the next lookup recomputes.
	seq, err := a.ledger.LastSeq(ctx, noteID)
	if err != nil {
		a.Invalidate(noteID)
		return models.NoteScore{}, fmt.Errorf("failed to recompute score: %w", err)
	}
	score, err := a.recompute(ctx, noteID)
	if err != nil {
		a.Invalidate(noteID)
		return models.NoteScore{}, err
	}

	a.mu.Lock()
	a.cache[noteID] = cacheEntry{score: score, seq: seq}
	metrics.ScoreCacheEntries.Set(float64(len(a.cache)))
	a.mu.Unlock()
	return score, nil
}

// ScoresOf returns scores for several notes from a single ledger snapshot.
// Cached entries are not consulted, since they may reflect different moments.
func (a *Aggregator) ScoresOf(ctx context.Context, noteIDs []string) (map[string]int, error) {
	scores, err := a.ledger.ScoresOf(ctx, noteIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get scores: %w", err)
	}
	return scores, nil
}

// Verify compares the cached score of a note with a full recomputation made
// under the note's stripe. A note without a cache entry verifies trivially.
// On mismatch the entry is dropped so the next read recomputes it.
func (a *Aggregator) Verify(ctx context.Context, noteID string) (cached, recomputed int, ok bool, err error) {
	unlock := a.lock(noteID)
	defer unlock()

	fresh, err := a.recompute(ctx, noteID)
	if err != nil {
		return 0, 0, false, err
	}

	held, present := a.cached(noteID)
	if !present {
		return fresh.Score, fresh.Score, true, nil
	}
	entry := held.score
	if entry != fresh {
		metrics.ScoreDrift.Inc()
		slog.Warn("Cached score differs from ledger",
			"note_id", noteID,
			"cached", entry.Score,
			"recomputed", fresh.Score,
			"cached_raters", entry.Raters,
			"raters", fresh.Raters,
		)
		a.Invalidate(noteID)
		return entry.Score, fresh.Score, false, nil
	}
	return entry.Score, fresh.Score, true, nil
}

// CachedNoteIDs returns up to limit note IDs that currently have a cached
// score. A non-positive limit returns all of them.
func (a *Aggregator) CachedNoteIDs(limit int) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.cache))
	for id := range a.cache {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, id)
	}
	return ids
}

// Invalidate drops the cached score of a note
func (a *Aggregator) Invalidate(noteID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.cache, noteID)
	metrics.ScoreCacheEntries.Set(float64(len(a.cache)))
}

// Reset empties the cache
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache = make(map[string]cacheEntry)
	metrics.ScoreCacheEntries.Set(0)
}

// CacheEnabled reports whether scores are cached
func (a *Aggregator) CacheEnabled() bool {
	return a.cacheEnabled
}

func (a *Aggregator) cached(noteID string) (cacheEntry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	entry, ok := a.cache[noteID]
	return entry, ok
}

func outcome(err error) string {
	switch {
	case models.IsValidation(err):
		return "invalid"
	case models.IsNotFound(err):
		return "not_found"
	case models.IsConflict(err):
		return "conflict"
	default:
		return "error"
	}
}
