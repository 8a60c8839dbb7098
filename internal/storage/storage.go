package storage

import (
	"context"
	"fmt"

	"github.com/readmesync/readmesync/internal/events"
	"github.com/readmesync/readmesync/internal/storage/sqlite"
	"github.com/readmesync/readmesync/internal/types"
)

// Storage defines the interface for run history backends
type Storage interface {
	// Events - guard lifecycle events attached to a run
	events.Recorder
	GetRunEvents(ctx context.Context, runID string) ([]*types.RunEvent, error)

	// Runs
	StartRun(ctx context.Context, run *types.Run) error
	FinishRun(ctx context.Context, run *types.Run) error
	GetRun(ctx context.Context, id string) (*types.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*types.Run, error)

	// Retention
	PruneRuns(ctx context.Context, keep int) (int, error)

	// Lifecycle
	Close() error
}

// Config holds storage configuration
type Config struct {
	// Path is the SQLite database file; ":memory:" opens a private in-memory database
	Path string
}

// NewStorage creates a new storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	return sqlite.New(ctx, cfg.Path)
}
