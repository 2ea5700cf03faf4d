package runner

import (
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// State is a node of the run state machine.
type State int

const (
	StateStart State = iota
	StateInvokeModel
	StateHandleTools
	StateHandleTransfer
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateInvokeModel:
		return "INVOKE_MODEL"
	case StateHandleTools:
		return "HANDLE_TOOLS"
	case StateHandleTransfer:
		return "HANDLE_TRANSFER"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// RunState is a snapshot of a run, attached to every RunError.
type RunState struct {
	RunID string
	// State is StateFailed for every RunError.
	State State
	// Step is where the run stopped: StateStart before the loop began, the
	// failing step inside the loop, or StateDone when only persisting failed.
	Step State
	// Agent is the active agent at the time of the snapshot.
	Agent string
	Turn  int
	// History is prior history, input and all completed steps.
	History []core.Item
	// NewItems are the items generated by completed steps.
	NewItems []core.Item
	// Pending is the model response of the step that failed, if any.
	Pending *model.Response
	Usage   model.TokenUsage
}
