package core

import (
	"errors"
	"fmt"
)

// ErrConflictingInput is returned when a run is given both a session id and an
// explicit pre-built input list. The two are mutually exclusive ways of
// supplying prior history.
var ErrConflictingInput = errors.New("session id and explicit input items are mutually exclusive")

// ErrMemoryClosed is returned by SessionMemory implementations after Cleanup.
var ErrMemoryClosed = errors.New("session memory is closed")

// ModelError reports a provider or transport failure of the model adapter.
// The loop never retries; retry policy belongs to the adapter.
type ModelError struct {
	Agent string
	Model string
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %q (agent %s): %v", e.Model, e.Agent, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// StorageError reports a failed SessionMemory operation.
type StorageError struct {
	SessionID string
	Op        string
	Err       error
}

func (e *StorageError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("session memory %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("session memory %s (session %s): %v", e.Op, e.SessionID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err as a StorageError. A nil err yields nil.
func NewStorageError(sessionID, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{SessionID: sessionID, Op: op, Err: err}
}

// MaxTurnsExceededError is returned when a run needs more turns than allowed.
type MaxTurnsExceededError struct {
	MaxTurns int
}

func (e *MaxTurnsExceededError) Error() string {
	return fmt.Sprintf("max turns (%d) exceeded", e.MaxTurns)
}

// InvalidTransferTargetError is returned when a model requests a transfer to an
// agent that is not among the active agent's permitted targets.
type InvalidTransferTargetError struct {
	Agent     string
	Target    string
	Permitted []string
}

func (e *InvalidTransferTargetError) Error() string {
	return fmt.Sprintf("agent %s cannot transfer to %q (permitted: %v)", e.Agent, e.Target, e.Permitted)
}

// GuardrailStage names where a guardrail ran.
type GuardrailStage string

const (
	GuardrailInput  GuardrailStage = "input"
	GuardrailOutput GuardrailStage = "output"
)

// GuardrailViolationError is returned when an input or output guardrail fails.
// Content holds the items or output that tripped the check.
type GuardrailViolationError struct {
	Guardrail string
	Stage     GuardrailStage
	Content   any
	Rationale any
}

func (e *GuardrailViolationError) Error() string {
	return fmt.Sprintf("%s guardrail %q tripped", e.Stage, e.Guardrail)
}

// ToolExecutionError reports a failed tool call. Non-fatal tool errors are
// recorded in history instead of being returned; only Fatal ones abort a run.
type ToolExecutionError struct {
	Tool   string
	CallID string
	Fatal  bool
	Err    error
}

func (e *ToolExecutionError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("fatal error in tool %s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
