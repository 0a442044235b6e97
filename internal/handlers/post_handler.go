package handlers

import (
	"net/http"
	"strconv"

	"notes-ledger/internal/models"
	"notes-ledger/internal/service"
	"notes-ledger/pkg/validator"
)

// CreatePostRequest represents the request body for creating a post
type CreatePostRequest struct {
	Title   string `json:"title" validate:"notblank,max=300"`
	Content string `json:"content" validate:"notblank"`
	Author  string `json:"author" validate:"notblank,max=200"`
}

// PostHandler handles post requests
type PostHandler struct {
	postService *service.PostService
}

// NewPostHandler creates a new post handler
func NewPostHandler(postService *service.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

// CreatePost creates a new post
// @Summary Create post
// @Description Create a post. Notes and reviews are attached separately, so both lists start empty.
// @Tags Posts
// @Accept json
// @Produce json
// @Param post body CreatePostRequest true "Post data"
// @Success 201 {object} models.PostDetail
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Router /posts [post]
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	detail, err := h.postService.CreatePost(r.Context(), req.Title, req.Content, req.Author)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, detail)
}

// ListPosts lists posts in creation order
// @Summary List posts
// @Description List posts oldest first. Pass the last seen post ID as "after" to continue a listing.
// @Tags Posts
// @Produce json
// @Param after query int false "List posts created after this post ID"
// @Param limit query int false "Maximum number of posts (0 for all)"
// @Success 200 {array} models.Post
// @Failure 400 {object} ErrorResponse "Invalid query"
// @Router /posts [get]
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	var opts models.ListOptions

	if after := r.URL.Query().Get("after"); after != "" {
		id, err := strconv.ParseInt(after, 10, 64)
		if err == nil {
			err = validator.ValidateVar("after", id, "gte=1")
		} else {
			err = models.NewValidationError("after", "must be a post ID")
		}
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		opts.AfterID = id
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err == nil {
			err = validator.ValidateVar("limit", n, "gte=0,lte=1000")
		} else {
			err = models.NewValidationError("limit", "must be an integer")
		}
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		opts.Limit = n
	}

	posts, err := h.postService.ListPosts(r.Context(), opts)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, posts)
}

// GetPost retrieves a post with its scored notes and reviews
// @Summary Get post by ID
// @Description Get a post with every note (scored from one snapshot) and every review
// @Tags Posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.PostDetail
// @Failure 400 {object} ErrorResponse "Invalid ID"
// @Failure 404 {object} ErrorResponse "Post not found"
// @Router /posts/{id} [get]
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}

	detail, err := h.postService.GetPostDetail(r.Context(), postID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, detail)
}

func parsePostID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrMsgInvalidPostID, Field: "id"})
		return 0, false
	}
	return id, true
}
