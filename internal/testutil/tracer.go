package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/agentloop/tracing"
)

// RecordingTracer captures every event it receives.
type RecordingTracer struct {
	mu     sync.Mutex
	events []tracing.Event
}

// OnEvent implements tracing.Tracer.
func (r *RecordingTracer) OnEvent(_ context.Context, ev tracing.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *RecordingTracer) Events() []tracing.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tracing.Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *RecordingTracer) Types() []tracing.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]tracing.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// Count returns how many events of type t were recorded.
func (r *RecordingTracer) Count(t tracing.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}
