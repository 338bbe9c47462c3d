package testutil

import (
	"context"
	"sync/atomic"

	"github.com/genflow-ai/genflow/generation"
	"github.com/genflow-ai/genflow/retrieval"
	"github.com/genflow-ai/genflow/websearch"
)

// MockRetriever is a configurable retrieval.Retriever. The zero value
// returns no passages.
type MockRetriever struct {
	Passages []retrieval.Passage
	Err      error
	// SearchFunc overrides the canned behavior entirely when set.
	SearchFunc func(ctx context.Context, q retrieval.Query) ([]retrieval.Passage, error)

	calls atomic.Int64
}

func (m *MockRetriever) Search(ctx context.Context, q retrieval.Query) ([]retrieval.Passage, error) {
	m.calls.Add(1)
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, q)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Passages, nil
}

// Calls reports how many times Search was invoked.
func (m *MockRetriever) Calls() int { return int(m.calls.Load()) }

// MockSearcher is a configurable websearch.Searcher. The zero value returns
// no results.
type MockSearcher struct {
	Results    []websearch.Result
	Err        error
	SearchFunc func(ctx context.Context, query string, maxResults int) ([]websearch.Result, error)

	calls atomic.Int64
}

func (m *MockSearcher) Search(ctx context.Context, query string, maxResults int) ([]websearch.Result, error) {
	m.calls.Add(1)
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, maxResults)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Results, nil
}

func (m *MockSearcher) Calls() int { return int(m.calls.Load()) }

// MockGenerator is a configurable generation.Generator. The zero value
// echoes the prompt back.
type MockGenerator struct {
	Text         string
	Err          error
	CompleteFunc func(ctx context.Context, req generation.Request) (*generation.Response, error)

	calls atomic.Int64
}

func (m *MockGenerator) Complete(ctx context.Context, req generation.Request) (*generation.Response, error) {
	m.calls.Add(1)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	text := m.Text
	if text == "" {
		text = req.Prompt
	}
	return &generation.Response{Text: text, TokensUsed: len(text)}, nil
}

func (m *MockGenerator) Calls() int { return int(m.calls.Load()) }
