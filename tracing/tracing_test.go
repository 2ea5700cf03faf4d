package tracing

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/logging"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestMulti_FanOutSurvivesPanics(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriterLogger(&buf, logging.LogLevelDebug)

	first, last := &recorder{}, &recorder{}
	panicky := Func(func(context.Context, Event) { panic("tracer bug") })

	m := NewMulti(logger, first, nil, panicky)
	m.Add(last)
	m.Add(nil)
	assert.Equal(t, 3, m.Len())

	m.OnEvent(context.Background(), Event{Type: EventRunStart, RunID: "r1"})

	require.Len(t, first.events, 1)
	require.Len(t, last.events, 1)
	assert.Equal(t, "r1", last.events[0].RunID)
	assert.False(t, last.events[0].Time.IsZero())
	assert.Contains(t, buf.String(), "tracing.panic")
}

func TestNotify_NilTracer(t *testing.T) {
	assert.NotPanics(t, func() {
		Notify(context.Background(), nil, Event{Type: EventRunEnd}, nil)
		Notify(context.Background(), Func(func(context.Context, Event) { panic("x") }), Event{}, nil)
	})
}

func TestLogTracer(t *testing.T) {
	var buf bytes.Buffer
	lt := NewLogTracer(logging.NewWriterLogger(&buf, logging.LogLevelDebug))

	lt.OnEvent(context.Background(), Event{Type: EventToolEnd, Tool: "lookup", CallID: "c1"})
	lt.OnEvent(context.Background(), Event{Type: EventRunEnd, Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "trace.tool.end")
	assert.Contains(t, out, "lookup")
	assert.Contains(t, out, "boom")
}
