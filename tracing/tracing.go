// Package tracing delivers run lifecycle events to observers. Delivery is
// fire-and-forget: a tracer cannot fail or abort a run, and a panicking tracer
// is recovered and logged.
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentloop/logging"
)

// EventType names a lifecycle point.
type EventType string

const (
	EventRunStart         EventType = "run.start"
	EventRunEnd           EventType = "run.end"
	EventTurnStart        EventType = "turn.start"
	EventTurnEnd          EventType = "turn.end"
	EventModelCall        EventType = "model.call"
	EventToolStart        EventType = "tool.start"
	EventToolEnd          EventType = "tool.end"
	EventTransfer         EventType = "transfer"
	EventGuardrailTripped EventType = "guardrail.tripped"
	EventMemoryLoad       EventType = "memory.load"
	EventMemoryAppend     EventType = "memory.append"
)

// Event is one lifecycle notification. Fields that do not apply to a type
// are left zero.
type Event struct {
	Type      EventType
	RunID     string
	SessionID string
	Agent     string
	Turn      int

	// Tool and CallID identify tool events.
	Tool   string
	CallID string
	// Target is the agent a transfer hands control to.
	Target string
	// Guardrail and Stage identify a tripped guardrail.
	Guardrail string
	Stage     string
	// Items counts the conversation items loaded or appended.
	Items int
	// Tokens is the total token usage reported by a model call.
	Tokens int

	Err      error
	Duration time.Duration
	Time     time.Time
}

// Tracer receives lifecycle events. Implementations must be safe for
// concurrent use; tool events of one turn arrive from parallel goroutines.
type Tracer interface {
	OnEvent(ctx context.Context, ev Event)
}

// Func adapts a function to a Tracer.
type Func func(ctx context.Context, ev Event)

// OnEvent implements Tracer.
func (f Func) OnEvent(ctx context.Context, ev Event) { f(ctx, ev) }

// NoOp discards all events.
type NoOp struct{}

// OnEvent implements Tracer.
func (NoOp) OnEvent(context.Context, Event) {}

// Multi fans events out to several tracers in registration order.
type Multi struct {
	tracers []Tracer
	logger  logging.Logger
}

// NewMulti combines tracers. Nil entries are skipped.
func NewMulti(logger logging.Logger, tracers ...Tracer) *Multi {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	m := &Multi{logger: logger}
	for _, t := range tracers {
		if t != nil {
			m.tracers = append(m.tracers, t)
		}
	}
	return m
}

// Add registers another tracer.
func (m *Multi) Add(t Tracer) {
	if t != nil {
		m.tracers = append(m.tracers, t)
	}
}

// Len returns the number of registered tracers.
func (m *Multi) Len() int { return len(m.tracers) }

// OnEvent delivers ev to every tracer, isolating each from the others.
func (m *Multi) OnEvent(ctx context.Context, ev Event) {
	for _, t := range m.tracers {
		Notify(ctx, t, ev, m.logger)
	}
}

// Notify delivers ev to t, recovering a panic. Time is stamped when unset.
func Notify(ctx context.Context, t Tracer, ev Event, logger logging.Logger) {
	if t == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Error("tracing.panic", "event", string(ev.Type), "tracer", fmt.Sprintf("%T", t), "panic", fmt.Sprint(r))
		}
	}()
	t.OnEvent(ctx, ev)
}

// LogTracer writes every event to a logger at debug level, failures at warn.
type LogTracer struct {
	logger logging.Logger
}

// NewLogTracer creates a LogTracer.
func NewLogTracer(logger logging.Logger) *LogTracer {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &LogTracer{logger: logger}
}

// OnEvent implements Tracer.
func (t *LogTracer) OnEvent(_ context.Context, ev Event) {
	args := []any{"run_id", ev.RunID, "agent", ev.Agent, "turn", ev.Turn}
	if ev.SessionID != "" {
		args = append(args, "session_id", ev.SessionID)
	}
	if ev.Tool != "" {
		args = append(args, "tool", ev.Tool, "call_id", ev.CallID)
	}
	if ev.Target != "" {
		args = append(args, "target", ev.Target)
	}
	if ev.Guardrail != "" {
		args = append(args, "guardrail", ev.Guardrail, "stage", ev.Stage)
	}
	if ev.Duration > 0 {
		args = append(args, "duration_ms", ev.Duration.Milliseconds())
	}
	if ev.Err != nil {
		t.logger.Warn("trace."+string(ev.Type), append(args, "error", ev.Err.Error())...)
		return
	}
	t.logger.Debug("trace."+string(ev.Type), args...)
}
