package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRatingEventSupersedes(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	older := RatingEvent{Seq: 10, SubmittedAt: base}
	newer := RatingEvent{Seq: 5, SubmittedAt: base.Add(time.Second)}
	assert.True(t, newer.Supersedes(older), "later timestamp wins regardless of sequence")
	assert.False(t, older.Supersedes(newer))

	tieLow := RatingEvent{Seq: 1, SubmittedAt: base}
	tieHigh := RatingEvent{Seq: 2, SubmittedAt: base}
	assert.True(t, tieHigh.Supersedes(tieLow), "sequence breaks timestamp ties")
	assert.False(t, tieLow.Supersedes(tieHigh))
	assert.False(t, tieLow.Supersedes(tieLow))
}

func TestSubmitResultDelta(t *testing.T) {
	tests := []struct {
		name   string
		result SubmitResult
		want   int
	}{
		{"first vote", SubmitResult{Event: RatingEvent{Value: 1}, Current: true}, 1},
		{"flip correct to incorrect", SubmitResult{Event: RatingEvent{Value: -1}, Previous: &RatingEvent{Value: 1}, Current: true}, -2},
		{"revoke with mixed", SubmitResult{Event: RatingEvent{Value: 0}, Previous: &RatingEvent{Value: -1}, Current: true}, 1},
		{"repeat same value", SubmitResult{Event: RatingEvent{Value: 1}, Previous: &RatingEvent{Value: 1}, Current: true}, 0},
		{"stale event", SubmitResult{Event: RatingEvent{Value: -1}, Previous: &RatingEvent{Value: 1}, Current: false}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Delta())
		})
	}
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("failed to submit rating: %w", NewNotFoundError("note", "n-1"))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, "failed to submit rating: note n-1 not found", wrapped.Error())

	v := NewValidationError("value", "must be one of -1, 0, 1")
	assert.True(t, IsValidation(v))
	assert.Equal(t, "value: must be one of -1, 0, 1", v.Error())

	c := &ConflictError{Resource: "rating", Reason: "serialization failure"}
	assert.True(t, IsConflict(fmt.Errorf("wrapped: %w", c)))
}

func TestIsValidRating(t *testing.T) {
	for _, v := range []int{-1, 0, 1} {
		assert.True(t, IsValidRating(v))
	}
	for _, v := range []int{-2, 2, 5} {
		assert.False(t, IsValidRating(v))
	}
}
