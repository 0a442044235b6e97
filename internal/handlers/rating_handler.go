package handlers

import (
	"net/http"
	"time"

	"notes-ledger/internal/middleware"
	"notes-ledger/internal/models"
	"notes-ledger/internal/service"
	"notes-ledger/pkg/validator"
)

// RateRequest represents a rating submission. "score" is accepted as an
// alias of "value"; when both are present "value" wins.
type RateRequest struct {
	NoteID        string     `json:"noteId" validate:"notblank"`
	ParticipantID string     `json:"participantId,omitempty"`
	Value         *int       `json:"value,omitempty" validate:"omitempty,oneof=-1 0 1"`
	Score         *int       `json:"score,omitempty" validate:"omitempty,oneof=-1 0 1"`
	SubmittedAt   *time.Time `json:"submittedAt,omitempty"`
}

// RatingHandler handles rating requests
type RatingHandler struct {
	ratingService *service.RatingService
}

// NewRatingHandler creates a new rating handler
func NewRatingHandler(ratingService *service.RatingService) *RatingHandler {
	return &RatingHandler{ratingService: ratingService}
}

// SubmitRating records a participant's rating of a note
// @Summary Rate note
// @Description Record a rating (-1 incorrect, 0 mixed, 1 correct). A participant's latest rating replaces their earlier ones.
// @Description With authentication enabled the participant is taken from the bearer token.
// @Tags Ratings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param rating body RateRequest true "Rating"
// @Success 200 {object} models.RatingResult
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Note not found"
// @Failure 409 {object} ErrorResponse "Concurrent submission, retry"
// @Router /ratings [post]
func (h *RatingHandler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	var req RateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	value := req.Value
	if value == nil {
		value = req.Score
	}
	if value == nil {
		respondWithServiceError(w, r, models.NewValidationError("value", "is required"))
		return
	}

	participantID := req.ParticipantID
	if authenticated, ok := middleware.GetParticipantID(r); ok {
		participantID = authenticated
	}
	if err := validator.ValidateVar("participantId", participantID, "notblank"); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	result, err := h.ratingService.Rate(r.Context(), service.RateInput{
		NoteID:        req.NoteID,
		ParticipantID: participantID,
		Value:         *value,
		SubmittedAt:   req.SubmittedAt,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GetScore returns a note's current score
// @Summary Get note score
// @Description Get the sum of every participant's current rating of a note
// @Tags Ratings
// @Produce json
// @Param noteId query string true "Note ID"
// @Success 200 {object} models.NoteScore
// @Failure 400 {object} ErrorResponse "Missing note ID"
// @Failure 404 {object} ErrorResponse "Note not found"
// @Router /ratings [get]
func (h *RatingHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	noteID := r.URL.Query().Get("noteId")
	if err := validator.ValidateVar("noteId", noteID, "notblank"); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	score, err := h.ratingService.Score(r.Context(), noteID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, score)
}

// GetHistory returns every rating recorded for a note
// @Summary Get rating history
// @Description Get every rating event of a note in acceptance order, each marked with whether it is still current
// @Tags Ratings
// @Produce json
// @Param id path string true "Note ID"
// @Success 200 {array} models.RatingHistoryEntry
// @Failure 404 {object} ErrorResponse "Note not found"
// @Router /notes/{id}/ratings [get]
func (h *RatingHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.ratingService.History(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, history)
}
