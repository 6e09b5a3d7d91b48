package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gutenlab/gutenberg-pipeline/internal/gutenberg"
)

// RunStore records one row per pipeline run for operational visibility.
type RunStore struct {
	pool Pool
}

// NewRunStoreWithPool constructs a RunStore from an existing pool.
func NewRunStoreWithPool(pool Pool) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// StartRun upserts the run row in the running state.
func (s *RunStore) StartRun(ctx context.Context, runID uuid.UUID, startedAt time.Time) error {
	query := `
		INSERT INTO pipeline_runs (id, started_at, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, gutenberg.RunRunning); err != nil {
		return fmt.Errorf("start run %s: %w", runID, err)
	}
	return nil
}

// CompleteRun finalizes the run row with its status and summary counters.
func (s *RunStore) CompleteRun(
	ctx context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status gutenberg.RunStatus,
	summary gutenberg.RunSummary,
) error {
	query := `
		UPDATE pipeline_runs
		SET finished_at = $1, status = $2, processed = $3, skipped = $4, failed = $5
		WHERE id = $6`
	if _, err := s.pool.Exec(ctx, query,
		finishedAt, status, summary.Processed, summary.Skipped, summary.Failed, runID); err != nil {
		return fmt.Errorf("complete run %s: %w", runID, err)
	}
	return nil
}
