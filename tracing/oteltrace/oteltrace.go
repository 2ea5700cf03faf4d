// Package oteltrace turns run lifecycle events into OpenTelemetry spans. A run
// becomes a root span with one child per turn; model calls and tool
// executions are children of their turn. Transfers, guardrail trips and
// memory operations are recorded as span events on the run.
package oteltrace

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentloop/tracing"
)

// InstrumentationName identifies spans produced by this package.
const InstrumentationName = "github.com/hupe1980/agentloop"

type spanRef struct {
	ctx  context.Context
	span trace.Span
}

// Tracer implements tracing.Tracer on top of an OpenTelemetry tracer.
type Tracer struct {
	tracer trace.Tracer

	mu    sync.Mutex
	runs  map[string]spanRef
	turns map[string]spanRef
	tools map[string]trace.Span
}

var _ tracing.Tracer = (*Tracer)(nil)

// New creates a Tracer. A nil provider uses the global one.
func New(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{
		tracer: tp.Tracer(InstrumentationName),
		runs:   make(map[string]spanRef),
		turns:  make(map[string]spanRef),
		tools:  make(map[string]trace.Span),
	}
}

// OnEvent implements tracing.Tracer.
func (t *Tracer) OnEvent(ctx context.Context, ev tracing.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case tracing.EventRunStart:
		sctx, span := t.tracer.Start(ctx, "agentloop.run",
			trace.WithTimestamp(ev.Time),
			trace.WithAttributes(
				attribute.String("agentloop.run_id", ev.RunID),
				attribute.String("agentloop.agent", ev.Agent),
				attribute.String("agentloop.session_id", ev.SessionID),
			))
		t.runs[ev.RunID] = spanRef{ctx: sctx, span: span}

	case tracing.EventTurnStart:
		parent := t.parent(ctx, t.runs, ev.RunID)
		sctx, span := t.tracer.Start(parent, "agentloop.turn",
			trace.WithTimestamp(ev.Time),
			trace.WithAttributes(
				attribute.Int("agentloop.turn", ev.Turn),
				attribute.String("agentloop.agent", ev.Agent),
			))
		t.turns[ev.RunID] = spanRef{ctx: sctx, span: span}

	case tracing.EventTurnEnd:
		if ref, ok := t.turns[ev.RunID]; ok {
			end(ref.span, ev)
			delete(t.turns, ev.RunID)
		}

	case tracing.EventModelCall:
		parent := t.parent(ctx, t.turns, ev.RunID)
		_, span := t.tracer.Start(parent, "agentloop.model",
			trace.WithTimestamp(ev.Time.Add(-ev.Duration)),
			trace.WithAttributes(
				attribute.String("agentloop.agent", ev.Agent),
				attribute.Int("agentloop.tokens", ev.Tokens),
			))
		end(span, ev)

	case tracing.EventToolStart:
		parent := t.parent(ctx, t.turns, ev.RunID)
		_, span := t.tracer.Start(parent, "agentloop.tool "+ev.Tool,
			trace.WithTimestamp(ev.Time),
			trace.WithAttributes(
				attribute.String("agentloop.tool", ev.Tool),
				attribute.String("agentloop.call_id", ev.CallID),
			))
		t.tools[ev.RunID+"/"+ev.CallID] = span

	case tracing.EventToolEnd:
		key := ev.RunID + "/" + ev.CallID
		if span, ok := t.tools[key]; ok {
			end(span, ev)
			delete(t.tools, key)
		}

	case tracing.EventRunEnd:
		if ref, ok := t.turns[ev.RunID]; ok {
			end(ref.span, ev)
			delete(t.turns, ev.RunID)
		}
		if ref, ok := t.runs[ev.RunID]; ok {
			ref.span.SetAttributes(attribute.Int("agentloop.turns", ev.Turn))
			end(ref.span, ev)
			delete(t.runs, ev.RunID)
		}

	default:
		t.annotate(ctx, ev)
	}
}

func (t *Tracer) parent(ctx context.Context, refs map[string]spanRef, runID string) context.Context {
	if ref, ok := refs[runID]; ok {
		return ref.ctx
	}
	if ref, ok := t.runs[runID]; ok {
		return ref.ctx
	}
	return ctx
}

func (t *Tracer) annotate(ctx context.Context, ev tracing.Event) {
	span := trace.SpanFromContext(ctx)
	if ref, ok := t.runs[ev.RunID]; ok {
		span = ref.span
	}

	attrs := []attribute.KeyValue{attribute.String("agentloop.agent", ev.Agent)}
	switch ev.Type {
	case tracing.EventTransfer:
		attrs = append(attrs, attribute.String("agentloop.target", ev.Target))
	case tracing.EventGuardrailTripped:
		attrs = append(attrs,
			attribute.String("agentloop.guardrail", ev.Guardrail),
			attribute.String("agentloop.stage", ev.Stage))
	case tracing.EventMemoryLoad, tracing.EventMemoryAppend:
		attrs = append(attrs, attribute.Int("agentloop.items", ev.Items))
	}
	if ev.Err != nil {
		attrs = append(attrs, attribute.String("agentloop.error", ev.Err.Error()))
	}
	span.AddEvent(string(ev.Type), trace.WithTimestamp(ev.Time), trace.WithAttributes(attrs...))
}

func end(span trace.Span, ev tracing.Event) {
	if ev.Err != nil {
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
	}
	span.End(trace.WithTimestamp(ev.Time))
}
