// Package agentloop provides a high-level façade over the runner, agents and
// session memory. Most applications interact with this package by:
//  1. Creating an AgentLoop via New() or NewFromConfig()
//  2. Registering one or more agents
//  3. Running an agent by name with a text input and an optional session id
//
// The one-off helper Run executes a single agent without any registration.
// The façade delegates orchestration to runner.Runner; all defaults are safe
// for local development and testing.
package agentloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/config"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/guardrail"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/memory"
	"github.com/hupe1980/agentloop/runner"
	"github.com/hupe1980/agentloop/tracing"
)

// Options configures the AgentLoop instance. Zero values fall back to the
// runner defaults.
type Options struct {
	MaxTurns         int
	MaxParallelTools int
	PersistTimeout   time.Duration

	InputGuardrails  []guardrail.Input
	OutputGuardrails []guardrail.Output

	// Tracer receives lifecycle events of every run (defaults to NoOp).
	Tracer tracing.Tracer
	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// AgentLoop is a registry of named agents sharing one runner configuration.
type AgentLoop struct {
	opts Options
	// closer releases a logger built by NewFromConfig.
	closer io.Closer

	mu      sync.RWMutex
	runners map[string]*runner.Runner
}

// New creates a new AgentLoop instance with optional overrides.
func New(optFns ...func(o *Options)) *AgentLoop {
	opts := Options{
		Tracer: tracing.NoOp{},
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &AgentLoop{opts: opts, runners: make(map[string]*runner.Runner)}
}

// NewFromConfig creates an AgentLoop from a loaded configuration. The memory
// section becomes the source of the shared default backend used by agents
// with memory.DefaultBackend().
func NewFromConfig(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*AgentLoop, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := cfg.Logging.Logger()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if err := memory.UseConfig(ctx, cfg.Memory); err != nil {
		return nil, fmt.Errorf("failed to configure memory: %w", err)
	}

	base := func(o *Options) {
		o.MaxTurns = cfg.Runner.MaxTurns
		o.MaxParallelTools = cfg.Runner.MaxParallelTools
		o.PersistTimeout = cfg.Runner.PersistTimeout
		o.Logger = logger
	}
	l := New(append([]func(o *Options){base}, optFns...)...)
	l.closer = logger
	return l, nil
}

// RegisterAgent validates a and makes it runnable by name.
func (l *AgentLoop) RegisterAgent(a *agent.Agent) error {
	if err := a.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.runners[a.Name()]; exists {
		return fmt.Errorf("agent %s already registered", a.Name())
	}
	l.runners[a.Name()] = runner.New(a, l.runnerOptions)
	l.opts.Logger.Debug("agentloop.agent.registered", "agent", a.Name())
	return nil
}

// Agent returns the registered agent named name.
func (l *AgentLoop) Agent(name string) (*agent.Agent, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.runners[name]
	if !ok {
		return nil, false
	}
	return r.Agent(), true
}

// Run executes the registered agent named agentName.
func (l *AgentLoop) Run(
	ctx context.Context,
	agentName string,
	input runner.Input,
	optFns ...func(o *runner.RunOptions),
) (*runner.RunResult, error) {
	l.mu.RLock()
	r, ok := l.runners[agentName]
	l.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("agent %s not registered", agentName)
	}
	return r.Run(ctx, input, optFns...)
}

// Cancel cancels an active run of any registered agent.
func (l *AgentLoop) Cancel(runID string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, r := range l.runners {
		if err := r.Cancel(runID); err == nil {
			return nil
		}
	}
	return fmt.Errorf("run %s not found", runID)
}

// Close releases the shared default memory backend and a logger built from
// configuration.
func (l *AgentLoop) Close(ctx context.Context) error {
	err := memory.CleanupDefault(ctx)
	if l.closer != nil {
		err = errors.Join(err, l.closer.Close())
	}
	return err
}

func (l *AgentLoop) runnerOptions(o *runner.Options) {
	if l.opts.MaxTurns > 0 {
		o.MaxTurns = l.opts.MaxTurns
	}
	o.MaxParallelTools = l.opts.MaxParallelTools
	if l.opts.PersistTimeout > 0 {
		o.PersistTimeout = l.opts.PersistTimeout
	}
	o.InputGuardrails = l.opts.InputGuardrails
	o.OutputGuardrails = l.opts.OutputGuardrails
	o.Tracer = l.opts.Tracer
	o.Logger = l.opts.Logger
}

// Run is a one-off helper executing a with a text input.
func Run(ctx context.Context, a *agent.Agent, input string, optFns ...func(o *runner.RunOptions)) (*runner.RunResult, error) {
	return runner.New(a).Run(ctx, runner.Text(input), optFns...)
}

// WithSession selects the session of a run.
func WithSession(id string) func(o *runner.RunOptions) { return runner.WithSession(id) }

// WithMaxTurns overrides the turn limit of a run.
func WithMaxTurns(n int) func(o *runner.RunOptions) { return runner.WithMaxTurns(n) }

// Text creates a text input.
func Text(s string) runner.Input { return runner.Text(s) }

// Items creates an input from a pre-built conversation.
func Items(items ...core.Item) runner.Input { return runner.Items(items...) }

// IsMaxTurnsExceeded reports whether err stems from the turn limit.
func IsMaxTurnsExceeded(err error) bool {
	var mte *core.MaxTurnsExceededError
	return errors.As(err, &mte)
}
