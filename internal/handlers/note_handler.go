package handlers

import (
	"net/http"

	"notes-ledger/internal/service"
	"notes-ledger/pkg/validator"
)

// CreateNoteRequest represents the request body for attaching a note
type CreateNoteRequest struct {
	NoteID              string  `json:"noteId,omitempty" validate:"omitempty,max=64"`
	AuthorParticipantID string  `json:"noteAuthorParticipantId" validate:"notblank,max=200"`
	Summary             string  `json:"summary" validate:"notblank"`
	Classification      *string `json:"classification,omitempty" validate:"omitempty,max=100"`
}

// CreateReviewRequest represents the request body for attaching a review
type CreateReviewRequest struct {
	NoteID     *string `json:"noteId,omitempty" validate:"omitempty,notblank"`
	ReviewerID string  `json:"reviewerId" validate:"notblank,max=200"`
	Comment    string  `json:"reviewComment" validate:"notblank"`
}

// GenerateContentRequest represents a free-form prompt for the language model
type GenerateContentRequest struct {
	Prompt string `json:"prompt" validate:"notblank"`
}

// GenerateContentResponse carries generated text
type GenerateContentResponse struct {
	Text string `json:"text"`
}

// NoteHandler handles note, review and generation requests
type NoteHandler struct {
	noteService *service.NoteService
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(noteService *service.NoteService) *NoteHandler {
	return &NoteHandler{noteService: noteService}
}

// CreateNote attaches a note to a post
// @Summary Add note
// @Description Attach a note to an existing post. A note ID is generated when none is given.
// @Tags Notes
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param note body CreateNoteRequest true "Note data"
// @Success 201 {object} models.Note
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 404 {object} ErrorResponse "Post not found"
// @Failure 409 {object} ErrorResponse "Note ID already exists"
// @Router /posts/{id}/notes [post]
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}

	var req CreateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	note, err := h.noteService.AddNote(r.Context(), postID, service.NoteInput{
		ID:                  req.NoteID,
		AuthorParticipantID: req.AuthorParticipantID,
		Summary:             req.Summary,
		Classification:      req.Classification,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, note)
}

// CreateReview attaches a review to a post
// @Summary Add review
// @Description Attach a review to an existing post, optionally about one of its notes
// @Tags Notes
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param review body CreateReviewRequest true "Review data"
// @Success 201 {object} models.Review
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 404 {object} ErrorResponse "Post or note not found"
// @Router /posts/{id}/reviews [post]
func (h *NoteHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}

	var req CreateReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	review, err := h.noteService.AddReview(r.Context(), postID, service.ReviewInput{
		NoteID:     req.NoteID,
		ReviewerID: req.ReviewerID,
		Comment:    req.Comment,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, review)
}

// GenerateNotes writes persona notes and reviews for a post
// @Summary Generate persona notes
// @Description Ask the language model for one note per configured persona, then a review of each new note by every persona
// @Tags Notes
// @Produce json
// @Param id path int true "Post ID"
// @Success 201 {object} models.PostDetail
// @Failure 404 {object} ErrorResponse "Post not found"
// @Failure 502 {object} ErrorResponse "Language model unavailable"
// @Router /posts/{id}/notes/generate [post]
func (h *NoteHandler) GenerateNotes(w http.ResponseWriter, r *http.Request) {
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}

	detail, err := h.noteService.GenerateNotes(r.Context(), postID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, detail)
}

// GenerateContent passes a prompt to the language model
// @Summary Generate text
// @Description Generate text for a free-form prompt
// @Tags Notes
// @Accept json
// @Produce json
// @Param request body GenerateContentRequest true "Prompt"
// @Success 200 {object} GenerateContentResponse
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 502 {object} ErrorResponse "Language model unavailable"
// @Router /generate/content [post]
func (h *NoteHandler) GenerateContent(w http.ResponseWriter, r *http.Request) {
	var req GenerateContentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	text, err := h.noteService.GenerateText(r.Context(), req.Prompt)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, GenerateContentResponse{Text: text})
}
