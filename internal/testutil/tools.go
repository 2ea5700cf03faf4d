package testutil

import (
	"sync"
	"time"

	"github.com/hupe1980/agentloop/core"
)

// StubTool is a configurable tool fake that records its invocations.
type StubTool struct {
	ToolName string
	Schema   map[string]any
	Delay    time.Duration
	Fn       func(tc *core.ToolContext, args map[string]any) (any, error)

	mu    sync.Mutex
	calls []map[string]any
}

// NewStubTool returns a tool answering with result.
func NewStubTool(name string, result any) *StubTool {
	return &StubTool{
		ToolName: name,
		Fn: func(*core.ToolContext, map[string]any) (any, error) {
			return result, nil
		},
	}
}

// NewFailingTool returns a tool that always fails with err.
func NewFailingTool(name string, err error) *StubTool {
	return &StubTool{
		ToolName: name,
		Fn: func(*core.ToolContext, map[string]any) (any, error) {
			return nil, err
		},
	}
}

func (t *StubTool) Name() string        { return t.ToolName }
func (t *StubTool) Description() string { return "stub tool " + t.ToolName }

func (t *StubTool) Parameters() map[string]any {
	if t.Schema != nil {
		return t.Schema
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *StubTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	t.mu.Lock()
	t.calls = append(t.calls, args)
	t.mu.Unlock()

	if t.Delay > 0 {
		select {
		case <-time.After(t.Delay):
		case <-tc.Context().Done():
			return nil, tc.Context().Err()
		}
	}
	return t.Fn(tc, args)
}

// Calls returns the arguments of every invocation.
func (t *StubTool) Calls() []map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]map[string]any(nil), t.calls...)
}
