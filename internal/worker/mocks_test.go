package worker_test

import (
	"context"
	"sync"

	"scribehq.app/scribe/internal/model"
	"scribehq.app/scribe/internal/queue"
)

type mockConsumer struct {
	readFn    func(ctx context.Context) ([]queue.Message, error)
	ackFn     func(ctx context.Context, msg queue.Message) error
	requeueFn func(ctx context.Context, msg queue.Message, errMsg string) error
	dlqFn     func(ctx context.Context, msg queue.Message, errMsg string) error
}

func (m *mockConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	if m.readFn != nil {
		return m.readFn(ctx)
	}
	return nil, nil
}

func (m *mockConsumer) Ack(ctx context.Context, msg queue.Message) error {
	if m.ackFn != nil {
		return m.ackFn(ctx, msg)
	}
	return nil
}

func (m *mockConsumer) Requeue(ctx context.Context, msg queue.Message, errMsg string) error {
	if m.requeueFn != nil {
		return m.requeueFn(ctx, msg, errMsg)
	}
	return nil
}

func (m *mockConsumer) SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error {
	if m.dlqFn != nil {
		return m.dlqFn(ctx, msg, errMsg)
	}
	return nil
}

type mockGenerator struct {
	generateFn func(ctx context.Context, runID int64, sender model.SenderProfile, recipient model.RecipientProfile, org model.OrganizationProfile, options model.Options) model.Outcome

	mu    sync.Mutex
	calls []int64
}

func (m *mockGenerator) Generate(ctx context.Context, runID int64, sender model.SenderProfile, recipient model.RecipientProfile, org model.OrganizationProfile, options model.Options) model.Outcome {
	m.mu.Lock()
	m.calls = append(m.calls, runID)
	m.mu.Unlock()

	if m.generateFn != nil {
		return m.generateFn(ctx, runID, sender, recipient, org, options)
	}
	return model.Outcome{RunID: runID, Status: model.OutcomeApproved}
}

func (m *mockGenerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
