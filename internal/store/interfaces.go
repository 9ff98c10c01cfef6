// Package store persists run records and their outcomes.
package store

import (
	"context"
	"errors"

	"scribehq.app/scribe/internal/model"
)

// ErrNotFound is returned when a run or outcome does not exist.
var ErrNotFound = errors.New("not found")

// RunStore persists run snapshots and their caller-visible outcomes.
type RunStore interface {
	// Create records a newly started run.
	Create(ctx context.Context, run model.Run) error

	// SaveOutcome stores the final run snapshot together with its outcome.
	SaveOutcome(ctx context.Context, run model.Run, outcome model.Outcome) error

	// GetOutcome returns the outcome for a finished run, or ErrNotFound.
	GetOutcome(ctx context.Context, runID int64) (model.Outcome, error)

	// GetRun returns the latest stored snapshot of a run, or ErrNotFound.
	GetRun(ctx context.Context, runID int64) (model.Run, error)

	// ListRecent returns the most recent outcomes, newest first.
	ListRecent(ctx context.Context, limit int32) ([]model.Outcome, error)
}
