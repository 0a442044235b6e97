package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"notes-ledger/internal/models"
	"notes-ledger/internal/repository"
	"notes-ledger/internal/service"
)

// importFile is the YAML layout accepted by "notesctl import"
type importFile struct {
	Posts []importPost `yaml:"posts"`
}

type importPost struct {
	Title   string         `yaml:"title"`
	Content string         `yaml:"content"`
	Author  string         `yaml:"author"`
	Notes   []importNote   `yaml:"notes"`
	Reviews []importReview `yaml:"reviews"`
}

type importNote struct {
	ID             string         `yaml:"id"`
	Author         string         `yaml:"author"`
	Summary        string         `yaml:"summary"`
	Classification *string        `yaml:"classification"`
	Ratings        []importRating `yaml:"ratings"`
}

type importReview struct {
	NoteID   *string `yaml:"note"`
	Reviewer string  `yaml:"reviewer"`
	Comment  string  `yaml:"comment"`
}

type importRating struct {
	Participant string     `yaml:"participant"`
	Value       *int       `yaml:"value"`
	SubmittedAt *time.Time `yaml:"submittedAt"`
}

type importSummary struct {
	Posts   int
	Notes   int
	Reviews int
	Ratings int
}

func parseImport(r io.Reader) (*importFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file importFile
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return &file, nil
		}
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}
	return &file, nil
}

// importContent stores every post of file with its notes, reviews and
// ratings. It stops at the first failure; entries stored before it remain.
func importContent(ctx context.Context, a *app, file *importFile) (importSummary, error) {
	var summary importSummary

	for i, p := range file.Posts {
		detail, err := a.posts.CreatePost(ctx, p.Title, p.Content, p.Author)
		if err != nil {
			return summary, fmt.Errorf("post %d: %w", i+1, err)
		}
		postID := detail.Post.ID
		summary.Posts++

		for j, n := range p.Notes {
			note, err := a.notes.AddNote(ctx, postID, service.NoteInput{
				ID:                  n.ID,
				AuthorParticipantID: n.Author,
				Summary:             n.Summary,
				Classification:      n.Classification,
			})
			if err != nil {
				return summary, fmt.Errorf("post %d note %d: %w", i+1, j+1, err)
			}
			summary.Notes++

			for k, r := range n.Ratings {
				if r.Value == nil {
					return summary, fmt.Errorf("post %d note %d rating %d: %w", i+1, j+1, k+1,
						models.NewValidationError("value", "is required"))
				}
				if _, err := a.ratings.Rate(ctx, service.RateInput{
					NoteID:        note.ID,
					ParticipantID: r.Participant,
					Value:         *r.Value,
					SubmittedAt:   r.SubmittedAt,
				}); err != nil {
					return summary, fmt.Errorf("post %d note %d rating %d: %w", i+1, j+1, k+1, err)
				}
				summary.Ratings++
			}
		}

		for j, r := range p.Reviews {
			if _, err := a.notes.AddReview(ctx, postID, service.ReviewInput{
				NoteID:     r.NoteID,
				ReviewerID: r.Reviewer,
				Comment:    r.Comment,
			}); err != nil {
				return summary, fmt.Errorf("post %d review %d: %w", i+1, j+1, err)
			}
			summary.Reviews++
		}
	}

	return summary, nil
}

var importDryRun bool

// importCmd loads posts, notes, reviews and ratings from a YAML file
var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import posts, notes, reviews and ratings from YAML",
	Long: `Import content from a YAML file ("-" reads standard input):

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
      reviews:
        - note: note-1
          reviewer: dave
          comment: Correct

With --dry-run the file is imported into a throwaway in-memory store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer f.Close()
			in = f
		}

		file, err := parseImport(in)
		if err != nil {
			return err
		}

		var a *app
		if importDryRun {
			store := repository.NewMemoryStore()
			a = newApp(&repository.Stores{Content: store, Ledger: store}, cfg)
		} else {
			a, err = openApp()
			if err != nil {
				return err
			}
			defer a.stores.Close()
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		summary, err := importContent(ctx, a, file)
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d post(s), %d note(s), %d review(s), %d rating(s).\n",
			summary.Posts, summary.Notes, summary.Reviews, summary.Ratings)
		return err
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate the file against an in-memory store")
}
