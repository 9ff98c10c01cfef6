package pipeline_test

import (
	"context"
	"encoding/json"
	"sync"

	"scribehq.app/scribe/common/llm"
	"scribehq.app/scribe/internal/model"
)

// Mocks are safe for concurrent use; runs may execute in parallel.

type mockLLM struct {
	chatFn func(req llm.Request) (string, error)

	mu    sync.Mutex
	calls []llm.Request
}

func (m *mockLLM) Chat(_ context.Context, req llm.Request, result any) (*llm.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.chatFn == nil {
		return &llm.Response{}, nil
	}
	raw, err := m.chatFn(req)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), result); err != nil {
		return nil, err
	}
	return &llm.Response{}, nil
}

func (m *mockLLM) Model() string {
	return "mock-model"
}

type mockSearcher struct {
	searchFn func(ctx context.Context, query string) ([]model.Document, error)

	mu      sync.Mutex
	queries []string
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]model.Document, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, nil
}
