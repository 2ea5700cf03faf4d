package runner

import "fmt"

// RunError is returned for every failed run. Err is one of the core error
// types, a context error or a configuration error; errors.As reaches it
// through Unwrap.
type RunError struct {
	Err   error
	State RunState
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed in %s (agent %s, turn %d): %v", e.State.RunID, e.State.Step, e.State.Agent, e.State.Turn, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
