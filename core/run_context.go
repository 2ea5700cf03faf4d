package core

import (
	"context"

	"github.com/hupe1980/agentloop/logging"
)

// RunContext is the read-only view of a run handed to instruction providers
// and tools. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (RunID, SessionID, active agent name)
//   - The current turn number
//   - Caller supplied Vars (template values, request scoped data)
//   - A snapshot of the working history at the time the view was taken
//
// A RunContext is rebuilt by the runner for every step; holding on to it
// after the step returns yields stale data.
type RunContext struct {
	Context   context.Context
	RunID     string
	SessionID string
	Agent     string
	Turn      int
	Vars      map[string]any
	History   []Item

	*scopedLogger
}

// NewRunContext constructs a RunContext. History is copied.
func NewRunContext(
	ctx context.Context,
	runID, sessionID, agent string,
	turn int,
	vars map[string]any,
	history []Item,
	logger logging.Logger,
) *RunContext {
	if vars == nil {
		vars = map[string]any{}
	}
	return &RunContext{
		Context:      ctx,
		RunID:        runID,
		SessionID:    sessionID,
		Agent:        agent,
		Turn:         turn,
		Vars:         vars,
		History:      CloneItems(history),
		scopedLogger: newScopedLogger(logger, "run_id", runID, "agent", agent, "turn", turn),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// Var returns a caller supplied value.
func (rc *RunContext) Var(k string) (any, bool) {
	v, ok := rc.Vars[k]
	return v, ok
}

// LastUserMessage returns the text of the most recent user message in the history snapshot.
func (rc *RunContext) LastUserMessage() string {
	for i := len(rc.History) - 1; i >= 0; i-- {
		if rc.History[i].Kind == ItemUserMessage {
			return rc.History[i].Text()
		}
	}
	return ""
}
