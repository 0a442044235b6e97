package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"notes-ledger/internal/service"
)

var (
	notePostID         int64
	noteID             string
	noteAuthor         string
	noteSummary        string
	noteClassification string

	reviewPostID   int64
	reviewNoteID   string
	reviewReviewer string
	reviewComment  string
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes",
}

// noteAddCmd attaches a note to a post
var noteAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Attach a note to a post",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.stores.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()

		in := service.NoteInput{
			ID:                  noteID,
			AuthorParticipantID: noteAuthor,
			Summary:             noteSummary,
		}
		if noteClassification != "" {
			in.Classification = &noteClassification
		}

		note, err := a.notes.AddNote(ctx, notePostID, in)
		if err != nil {
			return err
		}
		return printJSON(cmd, note)
	},
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage reviews",
}

// reviewAddCmd attaches a review to a post
var reviewAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Attach a review to a post",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.stores.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()

		in := service.ReviewInput{
			ReviewerID: reviewReviewer,
			Comment:    reviewComment,
		}
		if reviewNoteID != "" {
			in.NoteID = &reviewNoteID
		}

		review, err := a.notes.AddReview(ctx, reviewPostID, in)
		if err != nil {
			return err
		}
		return printJSON(cmd, review)
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(noteCmd, reviewCmd)
	noteCmd.AddCommand(noteAddCmd)
	reviewCmd.AddCommand(reviewAddCmd)

	noteAddCmd.Flags().Int64Var(&notePostID, "post", 0, "Post ID")
	noteAddCmd.Flags().StringVar(&noteID, "id", "", "Note ID (generated when empty)")
	noteAddCmd.Flags().StringVar(&noteAuthor, "author", "", "Author participant ID")
	noteAddCmd.Flags().StringVar(&noteSummary, "summary", "", "Note text")
	noteAddCmd.Flags().StringVar(&noteClassification, "classification", "", "Optional classification")
	_ = noteAddCmd.MarkFlagRequired("post")
	_ = noteAddCmd.MarkFlagRequired("author")
	_ = noteAddCmd.MarkFlagRequired("summary")

	reviewAddCmd.Flags().Int64Var(&reviewPostID, "post", 0, "Post ID")
	reviewAddCmd.Flags().StringVar(&reviewNoteID, "note", "", "ID of the reviewed note")
	reviewAddCmd.Flags().StringVar(&reviewReviewer, "reviewer", "", "Reviewer ID")
	reviewAddCmd.Flags().StringVar(&reviewComment, "comment", "", "Review text")
	_ = reviewAddCmd.MarkFlagRequired("post")
	_ = reviewAddCmd.MarkFlagRequired("reviewer")
	_ = reviewAddCmd.MarkFlagRequired("comment")
}
