package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"notes-ledger/internal/aggregator"
	"notes-ledger/internal/config"
	"notes-ledger/internal/logger"
	"notes-ledger/internal/repository"
	"notes-ledger/internal/service"
)

var (
	verbose bool
	timeout time.Duration
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notesctl",
	Short: "Administer a notes-ledger deployment",
	Long: `notesctl works directly against the configured storage. It reads the same
environment (and .env file) as the API server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger.Setup(logger.Config{Level: level})

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Overall command timeout")
}

// app holds the services a command works with
type app struct {
	stores  *repository.Stores
	agg     *aggregator.Aggregator
	posts   *service.PostService
	notes   *service.NoteService
	ratings *service.RatingService
}

func newApp(stores *repository.Stores, cfg *config.Config) *app {
	// The CLI is short-lived and may run beside the API server, so it never caches
	agg := aggregator.New(stores.Ledger, aggregator.Options{CacheEnabled: false})
	posts := service.NewPostService(stores.Content, agg)
	llm := service.NewLLMService(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Enabled, cfg.LLM.Timeout)
	return &app{
		stores:  stores,
		agg:     agg,
		posts:   posts,
		notes:   service.NewNoteService(stores.Content, posts, llm, service.Personas(cfg.LLM.Personas)),
		ratings: service.NewRatingService(stores.Content, stores.Ledger, agg, cfg.Rating),
	}
}

// openApp opens the configured storage without migrating it
func openApp() (*app, error) {
	stores, err := repository.Open(cfg, false)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Driver == config.StorageDriverMemory {
		slog.Warn("STORAGE_DRIVER=memory: changes made by this command are discarded on exit")
	}
	return newApp(stores, cfg), nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
