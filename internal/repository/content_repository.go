package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"notes-ledger/internal/database"
	"notes-ledger/internal/models"
)

// ContentRepository handles post, note and review database operations
type ContentRepository struct {
	db *sql.DB
}

// NewContentRepository creates a new content repository
func NewContentRepository(db *sql.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// CreatePost creates a new post
func (r *ContentRepository) CreatePost(ctx context.Context, title, content, author string) (*models.Post, error) {
	if err := validatePost(title, content, author); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO posts (title, content, author)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	post := &models.Post{Title: title, Content: content, Author: author}
	if err := r.db.QueryRowContext(ctx, query, title, content, author).Scan(&post.ID, &post.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	return post, nil
}

// GetPost retrieves a post by ID
func (r *ContentRepository) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	query := `
		SELECT id, title, content, author, created_at
		FROM posts
		WHERE id = $1
	`

	post := &models.Post{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&post.ID,
		&post.Title,
		&post.Content,
		&post.Author,
		&post.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("post", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return post, nil
}

// ListPosts lists posts in creation order. AfterID continues a previous
// listing after the post with that ID; an unknown cursor yields no posts.
func (r *ContentRepository) ListPosts(ctx context.Context, opts models.ListOptions) ([]models.Post, error) {
	var (
		query strings.Builder
		args  []any
	)

	query.WriteString(`
		SELECT id, title, content, author, created_at
		FROM posts
	`)
	if opts.AfterID > 0 {
		args = append(args, opts.AfterID)
		query.WriteString(`WHERE (created_at, id) > (SELECT created_at, id FROM posts WHERE id = $1)
		`)
	}
	query.WriteString(`ORDER BY created_at, id`)
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&query, " LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		var post models.Post
		if err := rows.Scan(
			&post.ID,
			&post.Title,
			&post.Content,
			&post.Author,
			&post.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	return posts, nil
}

// CreateNote attaches a note to an existing post. A random ID is assigned
// when note.ID is empty.
func (r *ContentRepository) CreateNote(ctx context.Context, note models.Note) (*models.Note, error) {
	if err := validateNote(note); err != nil {
		return nil, err
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}

	query := `
		INSERT INTO notes (id, post_id, author_participant_id, summary, classification)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		note.ID,
		note.PostID,
		note.AuthorParticipantID,
		note.Summary,
		note.Classification,
	).Scan(&note.CreatedAt)
	switch {
	case database.IsForeignKeyViolation(err):
		return nil, models.NewNotFoundError("post", note.PostID)
	case database.IsUniqueViolation(err):
		return nil, &models.ConflictError{Resource: "note", Reason: fmt.Sprintf("note %s already exists", note.ID), Err: err}
	case err != nil:
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	return &note, nil
}

// GetNote retrieves a note by ID
func (r *ContentRepository) GetNote(ctx context.Context, id string) (*models.Note, error) {
	query := `
		SELECT id, post_id, author_participant_id, summary, classification, created_at
		FROM notes
		WHERE id = $1
	`

	note, err := scanNote(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("note", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return note, nil
}

// ListNotes lists the notes of a post in creation order
func (r *ContentRepository) ListNotes(ctx context.Context, postID int64) ([]models.Note, error) {
	if err := r.requirePost(ctx, postID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, post_id, author_participant_id, summary, classification, created_at
		FROM notes
		WHERE post_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, *note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}

	return notes, nil
}

// CreateReview attaches a review to an existing post. When review.NoteID is
// set, the note must belong to the same post.
func (r *ContentRepository) CreateReview(ctx context.Context, review models.Review) (*models.Review, error) {
	if err := validateReview(review); err != nil {
		return nil, err
	}
	if err := r.requirePost(ctx, review.PostID); err != nil {
		return nil, err
	}

	if review.NoteID != nil {
		var notePostID int64
		err := r.db.QueryRowContext(ctx, `SELECT post_id FROM notes WHERE id = $1`, *review.NoteID).Scan(&notePostID)
		if err == sql.ErrNoRows {
			return nil, models.NewNotFoundError("note", *review.NoteID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get note: %w", err)
		}
		if notePostID != review.PostID {
			return nil, models.NewValidationError("noteId", "note belongs to a different post")
		}
	}

	query := `
		INSERT INTO reviews (post_id, note_id, reviewer_id, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowContext(ctx, query,
		review.PostID,
		review.NoteID,
		review.ReviewerID,
		review.Comment,
	).Scan(&review.ID, &review.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	return &review, nil
}

// ListReviews lists the reviews of a post in creation order
func (r *ContentRepository) ListReviews(ctx context.Context, postID int64) ([]models.Review, error) {
	if err := r.requirePost(ctx, postID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, post_id, note_id, reviewer_id, comment, created_at
		FROM reviews
		WHERE post_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var review models.Review
		if err := rows.Scan(
			&review.ID,
			&review.PostID,
			&review.NoteID,
			&review.ReviewerID,
			&review.Comment,
			&review.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, nil
}

func (r *ContentRepository) requirePost(ctx context.Context, postID int64) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check post: %w", err)
	}
	if !exists {
		return models.NewNotFoundError("post", postID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*models.Note, error) {
	note := &models.Note{}
	err := row.Scan(
		&note.ID,
		&note.PostID,
		&note.AuthorParticipantID,
		&note.Summary,
		&note.Classification,
		&note.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return note, nil
}
