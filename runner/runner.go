package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/config"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/guardrail"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/tracing"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxTurns caps the model calls of a run. Zero or less means unlimited.
	MaxTurns int
	// MaxParallelTools limits concurrent tool calls within a turn. Zero means
	// no limit.
	MaxParallelTools int
	// PersistTimeout bounds the final session write. The write is detached
	// from the caller's context so that a cancelled run still stores its
	// completed steps.
	PersistTimeout time.Duration

	InputGuardrails  []guardrail.Input
	OutputGuardrails []guardrail.Output

	Tracer tracing.Tracer
	Logger logging.Logger
}

// RunOptions tune a single run.
type RunOptions struct {
	// SessionID selects the session memory history. Empty disables memory.
	SessionID string
	// MaxTurns overrides Options.MaxTurns when positive.
	MaxTurns int
	// Vars are exposed to instruction providers and tools.
	Vars map[string]any
	// RunID sets the run identifier, e.g. to cancel the run through Cancel.
	// A random id is used when empty.
	RunID string
}

// WithSession selects the session of a run.
func WithSession(id string) func(o *RunOptions) {
	return func(o *RunOptions) { o.SessionID = id }
}

// WithMaxTurns overrides the turn limit of a run.
func WithMaxTurns(n int) func(o *RunOptions) {
	return func(o *RunOptions) { o.MaxTurns = n }
}

// WithVars sets the run variables.
func WithVars(vars map[string]any) func(o *RunOptions) {
	return func(o *RunOptions) { o.Vars = vars }
}

// OptionsFromConfig applies the runner section of a loaded configuration.
func OptionsFromConfig(cfg config.RunnerConfig) func(o *Options) {
	return func(o *Options) {
		if cfg.MaxTurns > 0 {
			o.MaxTurns = cfg.MaxTurns
		}
		if cfg.MaxParallelTools > 0 {
			o.MaxParallelTools = cfg.MaxParallelTools
		}
		if cfg.PersistTimeout > 0 {
			o.PersistTimeout = cfg.PersistTimeout
		}
	}
}

// Runner executes runs of a starting agent. Public methods are safe for
// concurrent use; a Runner holds no per-run state beyond the cancel
// functions of active runs.
type Runner struct {
	agent *agent.Agent
	opts  Options

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

// New constructs a Runner with optional overrides.
func New(a *agent.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxTurns:       10,
		PersistTimeout: 10 * time.Second,
		Tracer:         tracing.NoOp{},
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Tracer == nil {
		opts.Tracer = tracing.NoOp{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 10 * time.Second
	}

	return &Runner{
		agent:      a,
		opts:       opts,
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Agent returns the starting agent.
func (r *Runner) Agent() *agent.Agent { return r.agent }

// Run executes the loop until the active agent produces a final output or
// the run fails. Failures are returned as *RunError.
func (r *Runner) Run(ctx context.Context, input Input, optFns ...func(o *RunOptions)) (*RunResult, error) {
	opts := RunOptions{MaxTurns: r.opts.MaxTurns}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.RunID == "" {
		opts.RunID = core.NewID()
	}

	failEarly := func(err error) (*RunResult, error) {
		return nil, &RunError{Err: err, State: RunState{RunID: opts.RunID, State: StateFailed, Step: StateStart}}
	}
	if opts.SessionID != "" && input.IsItems() {
		return failEarly(core.ErrConflictingInput)
	}
	if err := r.agent.Validate(); err != nil {
		return failEarly(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if _, exists := r.activeRuns[opts.RunID]; exists {
		r.mu.Unlock()
		return failEarly(fmt.Errorf("run %s is already active", opts.RunID))
	}
	r.activeRuns[opts.RunID] = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.activeRuns, opts.RunID)
		r.mu.Unlock()
	}()

	return newRun(r, opts).execute(ctx, input)
}

// Cancel cancels an active run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}
