package handler_test

import (
	"context"

	"scribehq.app/scribe/internal/model"
	"scribehq.app/scribe/internal/queue"
)

type mockGenerator struct {
	generateFn func(ctx context.Context, runID int64, sender model.SenderProfile, recipient model.RecipientProfile, org model.OrganizationProfile, options model.Options) model.Outcome
}

func (m *mockGenerator) Generate(ctx context.Context, runID int64, sender model.SenderProfile, recipient model.RecipientProfile, org model.OrganizationProfile, options model.Options) model.Outcome {
	if m.generateFn != nil {
		return m.generateFn(ctx, runID, sender, recipient, org, options)
	}
	return model.Outcome{RunID: runID, Status: model.OutcomeApproved}
}

type mockProducer struct {
	enqueueFn func(ctx context.Context, runID int64, payload queue.GeneratePayload) error
}

func (m *mockProducer) EnqueueGenerate(ctx context.Context, runID int64, payload queue.GeneratePayload) error {
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, runID, payload)
	}
	return nil
}

func (m *mockProducer) Close() error { return nil }

type mockRunStore struct {
	createFn      func(ctx context.Context, run model.Run) error
	saveOutcomeFn func(ctx context.Context, run model.Run, outcome model.Outcome) error
	getOutcomeFn  func(ctx context.Context, runID int64) (model.Outcome, error)
	getRunFn      func(ctx context.Context, runID int64) (model.Run, error)
	listRecentFn  func(ctx context.Context, limit int32) ([]model.Outcome, error)
}

func (m *mockRunStore) Create(ctx context.Context, run model.Run) error {
	if m.createFn != nil {
		return m.createFn(ctx, run)
	}
	return nil
}

func (m *mockRunStore) SaveOutcome(ctx context.Context, run model.Run, outcome model.Outcome) error {
	if m.saveOutcomeFn != nil {
		return m.saveOutcomeFn(ctx, run, outcome)
	}
	return nil
}

func (m *mockRunStore) GetOutcome(ctx context.Context, runID int64) (model.Outcome, error) {
	if m.getOutcomeFn != nil {
		return m.getOutcomeFn(ctx, runID)
	}
	return model.Outcome{}, nil
}

func (m *mockRunStore) GetRun(ctx context.Context, runID int64) (model.Run, error) {
	if m.getRunFn != nil {
		return m.getRunFn(ctx, runID)
	}
	return model.Run{}, nil
}

func (m *mockRunStore) ListRecent(ctx context.Context, limit int32) ([]model.Outcome, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, limit)
	}
	return nil, nil
}
