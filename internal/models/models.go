package models

import (
	"time"
)

// Rating values accepted by the ledger
const (
	RatingIncorrect = -1
	RatingMixed     = 0
	RatingCorrect   = 1
)

// Post represents a user-submitted post
type Post struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Author    string    `json:"author" db:"author"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Note represents an annotation attached to a post
type Note struct {
	ID                  string    `json:"noteId" db:"id"`
	PostID              int64     `json:"postId" db:"post_id"`
	AuthorParticipantID string    `json:"noteAuthorParticipantId" db:"author_participant_id"`
	Summary             string    `json:"summary" db:"summary"`
	Classification      *string   `json:"classification,omitempty" db:"classification"`
	CreatedAt           time.Time `json:"createdAt" db:"created_at"`
}

// Review represents free-text commentary on a post, optionally about one of its notes
type Review struct {
	ID         int64     `json:"id" db:"id"`
	PostID     int64     `json:"postId" db:"post_id"`
	NoteID     *string   `json:"noteId,omitempty" db:"note_id"`
	ReviewerID string    `json:"reviewerId" db:"reviewer_id"`
	Comment    string    `json:"reviewComment" db:"comment"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// RatingEvent is one participant's vote on one note. Events are never updated
// or deleted; whether an event is current is derived from its ordering.
type RatingEvent struct {
	Seq           int64     `json:"seq" db:"seq"`
	NoteID        string    `json:"noteId" db:"note_id"`
	ParticipantID string    `json:"participantId" db:"participant_id"`
	Value         int       `json:"value" db:"value"`
	SubmittedAt   time.Time `json:"submittedAt" db:"submitted_at"`
	AcceptedAt    time.Time `json:"acceptedAt" db:"accepted_at"`
}

// Supersedes reports whether e orders after other: later submission time,
// ties broken by the acceptance sequence number.
func (e RatingEvent) Supersedes(other RatingEvent) bool {
	if !e.SubmittedAt.Equal(other.SubmittedAt) {
		return e.SubmittedAt.After(other.SubmittedAt)
	}
	return e.Seq > other.Seq
}

// RatingSubmission is the input accepted by the rating ledger
type RatingSubmission struct {
	NoteID        string
	ParticipantID string
	Value         int
	SubmittedAt   time.Time
}

// SubmitResult describes the effect of one ledger submission
type SubmitResult struct {
	Event    RatingEvent
	Previous *RatingEvent // participant's current event before this submission
	Current  bool         // whether Event became the participant's current event
	PriorSeq int64        // the note's latest event Seq before this submission, 0 if none
}

// Delta returns the change this submission applies to the note's score
func (r SubmitResult) Delta() int {
	if !r.Current {
		return 0
	}
	if r.Previous == nil {
		return r.Event.Value
	}
	return r.Event.Value - r.Previous.Value
}

// RatingHistoryEntry is a ledger event annotated with its derived current status
type RatingHistoryEntry struct {
	RatingEvent
	Current bool `json:"current"`
}

// NoteWithScore extends Note with its aggregate score
type NoteWithScore struct {
	Note
	Score int `json:"score"`
}

// NoteScore is the aggregate rating state of a note
type NoteScore struct {
	NoteID string `json:"noteId"`
	Score  int    `json:"score"`
	Raters int    `json:"raters"`
}

// RatingResult is the outcome of one rating submission
type RatingResult struct {
	NoteID  string      `json:"noteId"`
	Score   int         `json:"score"`
	Current bool        `json:"current"`
	Event   RatingEvent `json:"event"`
}

// PostDetail is a post together with its notes (scored) and reviews
type PostDetail struct {
	Post    Post            `json:"post"`
	Notes   []NoteWithScore `json:"notes"`
	Reviews []Review        `json:"reviews"`
}

// ListOptions controls keyset pagination of post listings
type ListOptions struct {
	AfterID int64
	Limit   int
}

// IsValidRating reports whether v is an accepted rating value
func IsValidRating(v int) bool {
	return v == RatingIncorrect || v == RatingMixed || v == RatingCorrect
}
