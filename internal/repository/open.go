package repository

import (
	"context"
	"fmt"
	"log/slog"

	"notes-ledger/internal/config"
	"notes-ledger/internal/database"
)

// Stores bundles the content store and rating ledger selected by configuration
type Stores struct {
	Content ContentStore
	Ledger  RatingLedger
	DB      *database.Database // nil for in-memory storage
}

// Open connects the configured storage driver. With migrate set, Postgres
// storage is migrated before use.
func Open(cfg *config.Config, migrate bool) (*Stores, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		slog.Warn("Using in-memory storage, data is lost on exit")
		store := NewMemoryStore()
		return &Stores{Content: store, Ledger: store}, nil

	case config.StorageDriverPostgres:
		db, err := database.New(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("Database connection established")

		if migrate {
			migrator := database.NewMigrationExecutor(db.DB)
			if err := migrator.RunMigrations(cfg.Storage.MigrationsPath); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			slog.Info("Database migrations completed")
		}

		return &Stores{
			Content: NewContentRepository(db.DB),
			Ledger:  NewRatingRepository(db.DB),
			DB:      db,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// HealthCheck pings the database. In-memory storage is always healthy.
func (s *Stores) HealthCheck(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return s.DB.HealthCheck(ctx)
}

// Close releases the database connection, if any
func (s *Stores) Close() {
	if s.DB == nil {
		return
	}
	if err := s.DB.Close(); err != nil {
		slog.Error("Failed to close database connection", "error", err)
	}
}
