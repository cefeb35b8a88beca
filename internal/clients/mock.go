package clients

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a deterministic test double for Client: every call is
// served from ResponseFunc when set, otherwise from a pre-programmed
// response table keyed by the exact request key, and otherwise with a
// default "[mock response to: ...]" completion.
type MockClient struct {
	mu           sync.Mutex
	table        map[string]*Response
	ResponseFunc func(messages []Message, config Config) (*Response, error)
	calls        int
}

// NewMockClient returns an empty MockClient; Program works against it
// by composing Register calls or a ResponseFunc.
func NewMockClient() *MockClient {
	return &MockClient{table: make(map[string]*Response)}
}

// Register pre-programs the response for an exact (messages, config)
// pair, for deterministic replay under a fixed scenario.
func (m *MockClient) Register(messages []Message, config Config, resp *Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table[cacheKey(messages, config)] = resp
}

// Calls returns the number of requests served so far.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Request implements Client.
func (m *MockClient) Request(ctx context.Context, messages []Message, config Config) (*Response, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.ResponseFunc != nil {
		return m.ResponseFunc(messages, config)
	}

	m.mu.Lock()
	resp, ok := m.table[cacheKey(messages, config)]
	m.mu.Unlock()
	if ok {
		return resp, nil
	}

	var content string
	if len(messages) > 0 {
		content = fmt.Sprintf("[mock response to: %s]", messages[len(messages)-1].Content)
	} else {
		content = "[mock response]"
	}
	return &Response{
		CompletionText: content,
		Usage:          Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}, nil
}
