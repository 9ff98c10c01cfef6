package agent_test

import (
	"context"
	"encoding/json"

	"scribehq.app/scribe/common/llm"
	"scribehq.app/scribe/internal/model"
)

// mockLLM returns canned JSON per request; chatFn typically dispatches on
// req.SchemaName. The JSON is unmarshalled into result just like the real
// client does.
type mockLLM struct {
	chatFn func(req llm.Request) (string, error)
	calls  []llm.Request
}

func (m *mockLLM) Chat(_ context.Context, req llm.Request, result any) (*llm.Response, error) {
	m.calls = append(m.calls, req)
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

func (m *mockLLM) callsFor(schemaName string) int {
	n := 0
	for _, c := range m.calls {
		if c.SchemaName == schemaName {
			n++
		}
	}
	return n
}

type mockSearcher struct {
	searchFn func(ctx context.Context, query string) ([]model.Document, error)
	queries  []string
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]model.Document, error) {
	m.queries = append(m.queries, query)
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, nil
}
