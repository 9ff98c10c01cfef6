package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"scribehq.app/scribe/core/db"
	"scribehq.app/scribe/internal/model"
)

// runStore persists runs as JSONB documents; the queryable columns (status,
// recipient, timestamps) are lifted out for indexing.
type runStore struct {
	db *db.DB
}

func NewRunStore(database *db.DB) RunStore {
	return &runStore{db: database}
}

func (s *runStore) Create(ctx context.Context, run model.Run) error {
	snapshot, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	_, err = s.db.Pool().Exec(ctx, `
		INSERT INTO runs (id, recipient_name, status, created_at, snapshot)
		VALUES ($1, $2, 'running', $3, $4)`,
		run.ID, run.Recipient.Name, run.CreatedAt, snapshot)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *runStore) SaveOutcome(ctx context.Context, run model.Run, outcome model.Outcome) error {
	snapshot, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	outcomeJSON, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	tag, err := s.db.Pool().Exec(ctx, `
		UPDATE runs
		SET status = $2, failed_reason = $3, completed_at = now(), snapshot = $4, outcome = $5
		WHERE id = $1`,
		run.ID, string(outcome.Status), outcome.FailedReason, snapshot, outcomeJSON)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %d: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (s *runStore) GetOutcome(ctx context.Context, runID int64) (model.Outcome, error) {
	var raw []byte
	err := s.db.Pool().QueryRow(ctx,
		`SELECT outcome FROM runs WHERE id = $1 AND outcome IS NOT NULL`, runID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Outcome{}, ErrNotFound
		}
		return model.Outcome{}, fmt.Errorf("query outcome: %w", err)
	}

	var outcome model.Outcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return model.Outcome{}, fmt.Errorf("unmarshal outcome: %w", err)
	}
	return outcome, nil
}

func (s *runStore) GetRun(ctx context.Context, runID int64) (model.Run, error) {
	var raw []byte
	err := s.db.Pool().QueryRow(ctx,
		`SELECT snapshot FROM runs WHERE id = $1`, runID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Run{}, ErrNotFound
		}
		return model.Run{}, fmt.Errorf("query run: %w", err)
	}

	var run model.Run
	if err := json.Unmarshal(raw, &run); err != nil {
		return model.Run{}, fmt.Errorf("unmarshal run: %w", err)
	}
	return run, nil
}

func (s *runStore) ListRecent(ctx context.Context, limit int32) ([]model.Outcome, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT outcome FROM runs
		WHERE outcome IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []model.Outcome
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		var outcome model.Outcome
		if err := json.Unmarshal(raw, &outcome); err != nil {
			return nil, fmt.Errorf("unmarshal outcome: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}
