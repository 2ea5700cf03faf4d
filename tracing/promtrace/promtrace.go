// Package promtrace aggregates run lifecycle events into Prometheus metrics.
package promtrace

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/agentloop/tracing"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// Collector implements tracing.Tracer by updating Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	TurnsTotal      *prometheus.CounterVec
	ModelCallsTotal *prometheus.CounterVec
	TokensTotal     *prometheus.CounterVec
	ModelDuration   *prometheus.HistogramVec
	ToolCallsTotal  *prometheus.CounterVec
	ToolDuration    *prometheus.HistogramVec
	TransfersTotal  *prometheus.CounterVec
	GuardrailTrips  *prometheus.CounterVec
	MemoryOpsTotal  *prometheus.CounterVec
}

var _ tracing.Tracer = (*Collector)(nil)

// Options configures a Collector.
type Options struct {
	// Namespace prefixes every metric name. Defaults to "agentloop".
	Namespace string
	// Registerer receives the metrics. A private registry is created when nil.
	Registerer prometheus.Registerer
}

// New creates a Collector and registers its metrics.
func New(optFns ...func(o *Options)) (*Collector, error) {
	opts := Options{Namespace: "agentloop"}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Collector{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "runs_total",
			Help:      "Total number of runs by starting agent and outcome.",
		}, []string{"agent", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of runs in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent"}),
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "turns_total",
			Help:      "Total number of turns by active agent.",
		}, []string{"agent"}),
		ModelCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "model_calls_total",
			Help:      "Total number of model invocations.",
		}, []string{"agent", "status"}),
		TokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "tokens_total",
			Help:      "Total tokens reported by models.",
		}, []string{"agent"}),
		ModelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Duration of model invocations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent"}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool executions.",
		}, []string{"tool", "status"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool executions in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		TransfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "transfers_total",
			Help:      "Total number of agent transfers.",
		}, []string{"from", "to"}),
		GuardrailTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "guardrail_trips_total",
			Help:      "Total number of tripped guardrails.",
		}, []string{"guardrail", "stage"}),
		MemoryOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "memory_operations_total",
			Help:      "Total number of session memory operations.",
		}, []string{"op", "status"}),
	}

	reg := opts.Registerer
	if reg == nil {
		c.registry = prometheus.NewRegistry()
		reg = c.registry
	}
	for _, col := range c.collectors() {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.RunsTotal, c.RunDuration, c.TurnsTotal,
		c.ModelCallsTotal, c.TokensTotal, c.ModelDuration,
		c.ToolCallsTotal, c.ToolDuration,
		c.TransfersTotal, c.GuardrailTrips, c.MemoryOpsTotal,
	}
}

// Registry returns the private registry, or nil when a Registerer was supplied.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the private registry in the Prometheus exposition format.
// It falls back to the default gatherer when a Registerer was supplied.
func (c *Collector) Handler() http.Handler {
	if c.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// OnEvent implements tracing.Tracer.
func (c *Collector) OnEvent(_ context.Context, ev tracing.Event) {
	status := statusOK
	if ev.Err != nil {
		status = statusError
	}

	switch ev.Type {
	case tracing.EventRunEnd:
		c.RunsTotal.WithLabelValues(ev.Agent, status).Inc()
		c.RunDuration.WithLabelValues(ev.Agent).Observe(ev.Duration.Seconds())
	case tracing.EventTurnStart:
		c.TurnsTotal.WithLabelValues(ev.Agent).Inc()
	case tracing.EventModelCall:
		c.ModelCallsTotal.WithLabelValues(ev.Agent, status).Inc()
		c.ModelDuration.WithLabelValues(ev.Agent).Observe(ev.Duration.Seconds())
		if ev.Tokens > 0 {
			c.TokensTotal.WithLabelValues(ev.Agent).Add(float64(ev.Tokens))
		}
	case tracing.EventToolEnd:
		c.ToolCallsTotal.WithLabelValues(ev.Tool, status).Inc()
		c.ToolDuration.WithLabelValues(ev.Tool).Observe(ev.Duration.Seconds())
	case tracing.EventTransfer:
		c.TransfersTotal.WithLabelValues(ev.Agent, ev.Target).Inc()
	case tracing.EventGuardrailTripped:
		c.GuardrailTrips.WithLabelValues(ev.Guardrail, ev.Stage).Inc()
	case tracing.EventMemoryLoad:
		c.MemoryOpsTotal.WithLabelValues("load", status).Inc()
	case tracing.EventMemoryAppend:
		c.MemoryOpsTotal.WithLabelValues("append", status).Inc()
	}
}
