package core

import (
	"context"
	"sync"

	"github.com/hupe1980/agentloop/logging"
)

// ToolContext provides a constrained surface for tool implementations invoked
// by the runner. It exposes the call identity and the run view, and records
// control-flow requests (transfer) for the runner to act on after the call
// returns. It never mutates run state directly.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string

	mu       sync.Mutex
	transfer string

	*scopedLogger
}

// NewToolContext constructs a tool context bound to a parent RunContext
// and unique functionCallID.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		scopedLogger:   runCtx.scopedLogger.with("function_call_id", functionCallID),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// SessionID returns the session ID of the run, empty when memory is not used.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.scopedLogger.Logger() }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the name of the agent that requested the call.
func (tc *ToolContext) AgentName() string { return tc.runCtx.Agent }

// Var returns a caller supplied run variable.
func (tc *ToolContext) Var(k string) (any, bool) { return tc.runCtx.Var(k) }

// TransferToAgent signals the runner to hand control to another agent.
func (tc *ToolContext) TransferToAgent(name string) {
	tc.mu.Lock()
	tc.transfer = name
	tc.mu.Unlock()
	tc.LogInfo("tool.transfer.request", "to_agent", name)
}

// TransferRequest returns the agent requested via TransferToAgent, if any.
func (tc *ToolContext) TransferRequest() (string, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.transfer, tc.transfer != ""
}
