package core

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/hupe1980/agentloop/logging"
)

func TestToolContext_Basics(t *testing.T) {
	history := []Item{NewUserMessage("first"), NewUserMessage("second")}
	rc := NewRunContext(context.Background(), "run-1", "sess-1", "agentA", 2, map[string]any{"user": "alice"}, history, logging.NoOpLogger{})
	tc := NewToolContext(rc, "fc-1")

	if tc.FunctionCallID() != "fc-1" || tc.RunID() != "run-1" || tc.SessionID() != "sess-1" || tc.AgentName() != "agentA" {
		t.Fatalf("unexpected identity fields")
	}
	if v, ok := tc.Var("user"); !ok || v != "alice" {
		t.Fatalf("Var = %v, %v", v, ok)
	}
	if rc.LastUserMessage() != "second" {
		t.Fatalf("LastUserMessage = %q", rc.LastUserMessage())
	}
	if _, ok := tc.TransferRequest(); ok {
		t.Fatal("no transfer requested yet")
	}
	tc.TransferToAgent("agentB")
	if to, ok := tc.TransferRequest(); !ok || to != "agentB" {
		t.Fatalf("TransferRequest = %q, %v", to, ok)
	}
}

func TestRunContext_HistoryIsSnapshot(t *testing.T) {
	history := []Item{NewUserMessage("a")}
	rc := NewRunContext(context.Background(), "r", "", "x", 1, nil, history, nil)
	history[0] = NewUserMessage("mutated")
	if rc.History[0].Text() != "a" {
		t.Fatal("RunContext must copy history")
	}
	if rc.Vars == nil {
		t.Fatal("Vars should default to an empty map")
	}
	if rc.Logger() == nil {
		t.Fatal("nil logger should be replaced with a no-op logger")
	}
}

func TestToolContext_LogsCarryRunScope(t *testing.T) {
	var buf bytes.Buffer
	rc := NewRunContext(context.Background(), "run-7", "", "billing", 3, nil, nil, logging.NewWriterLogger(&buf, logging.LogLevelDebug))
	tc := NewToolContext(rc, "fc-9")

	tc.TransferToAgent("support")

	out := buf.String()
	for _, want := range []string{`"run_id":"run-7"`, `"agent":"billing"`, `"turn":3`, `"function_call_id":"fc-9"`, `"to_agent":"support"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %s", out, want)
		}
	}
}
