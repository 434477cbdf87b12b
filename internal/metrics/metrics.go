// Package metrics exposes the runtime's Prometheus instrumentation:
// turn throughput, task scheduling pressure, and event-fabric lag,
// adapted from the teacher's application-wide Metrics struct to
// Fathom's session/task/event domain.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the set of counters, histograms, and gauges the runtime
// updates as sessions process triggers, run turns, and schedule tasks.
//
// Usage:
//
//	m := metrics.New()
//	m.TurnCompleted(time.Since(start).Seconds())
//	m.TaskQueueDepth.WithLabelValues(sessionID).Set(float64(depth))
type Metrics struct {
	// TurnCounter counts completed turns by outcome.
	// Labels: outcome (success|turn_failure)
	TurnCounter *prometheus.CounterVec

	// TurnDuration measures wall-clock turn processing time in seconds.
	TurnDuration prometheus.Histogram

	// TurnFailureCounter counts turn failures by reason code.
	// Labels: reason_code (agent_init_error|no_tool_call|openai_error|agent_unreachable)
	TurnFailureCounter *prometheus.CounterVec

	// TaskCounter counts tasks by terminal status.
	// Labels: status (succeeded|failed|canceled)
	TaskCounter *prometheus.CounterVec

	// TaskQueueDepth tracks the current pending-task queue depth per session.
	TaskQueueDepth *prometheus.GaugeVec

	// RunningTasks tracks the current running-task count per session.
	RunningTasks *prometheus.GaugeVec

	// ToolInvocationCounter counts tool invocations dispatched by the
	// agent orchestrator.
	// Labels: tool_name
	ToolInvocationCounter *prometheus.CounterVec

	// EventsPublished counts events published to session hubs.
	// Labels: kind
	EventsPublished *prometheus.CounterVec

	// EventSubscriberLag counts lag events (missed/dropped deliveries)
	// detected by a subscriber.
	EventSubscriberLag prometheus.Counter

	// ActiveSessions is a gauge of currently running session actors.
	ActiveSessions prometheus.Gauge

	// LLMRequestDuration measures the streaming tool-call client's
	// end-to-end request latency in seconds.
	LLMRequestDuration prometheus.Histogram

	// LLMRequestCounter counts LLM requests by outcome.
	// Labels: status (success|error)
	LLMRequestCounter *prometheus.CounterVec
}

var (
	singletonOnce sync.Once
	singleton     *Metrics
)

// New returns the process-wide Metrics instance, registering every
// metric with Prometheus's default registry on the first call. Later
// calls (e.g. one Runtime built per test within a shared test binary)
// return the same instance rather than re-registering, which would
// panic on a duplicate metric name.
func New() *Metrics {
	singletonOnce.Do(func() {
		singleton = newMetrics()
	})
	return singleton
}

func newMetrics() *Metrics {
	return &Metrics{
		TurnCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fathom_turns_total",
				Help: "Total number of turns processed by outcome",
			},
			[]string{"outcome"},
		),
		TurnDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fathom_turn_duration_seconds",
				Help:    "Duration of turn processing in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
		TurnFailureCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fathom_turn_failures_total",
				Help: "Total number of turn failures by reason code",
			},
			[]string{"reason_code"},
		),
		TaskCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fathom_tasks_total",
				Help: "Total number of tasks reaching a terminal status",
			},
			[]string{"status"},
		),
		TaskQueueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fathom_task_queue_depth",
				Help: "Current pending task count per session",
			},
			[]string{"session_id"},
		),
		RunningTasks: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fathom_running_tasks",
				Help: "Current running task count per session",
			},
			[]string{"session_id"},
		),
		ToolInvocationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fathom_tool_invocations_total",
				Help: "Total number of tool invocations dispatched by the agent orchestrator",
			},
			[]string{"tool_name"},
		),
		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fathom_events_published_total",
				Help: "Total number of session events published",
			},
			[]string{"kind"},
		),
		EventSubscriberLag: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fathom_event_subscriber_lag_total",
				Help: "Total number of lag incidents detected by event subscribers",
			},
		),
		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fathom_active_sessions",
				Help: "Current number of running session actors",
			},
		),
		LLMRequestDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fathom_llm_request_duration_seconds",
				Help:    "Duration of streaming tool-call requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fathom_llm_requests_total",
				Help: "Total number of LLM streaming requests by outcome",
			},
			[]string{"status"},
		),
	}
}

// TurnCompleted records a successfully dispatched turn.
func (m *Metrics) TurnCompleted(durationSeconds float64) {
	m.TurnCounter.WithLabelValues("success").Inc()
	m.TurnDuration.Observe(durationSeconds)
}

// TurnFailed records a failed turn by its reason code.
func (m *Metrics) TurnFailed(reasonCode string, durationSeconds float64) {
	m.TurnCounter.WithLabelValues("turn_failure").Inc()
	m.TurnFailureCounter.WithLabelValues(reasonCode).Inc()
	m.TurnDuration.Observe(durationSeconds)
}

// TaskTerminal records a task reaching succeeded/failed/canceled.
func (m *Metrics) TaskTerminal(status string) {
	m.TaskCounter.WithLabelValues(status).Inc()
}

// ToolInvoked records one dispatched tool call.
func (m *Metrics) ToolInvoked(toolName string) {
	m.ToolInvocationCounter.WithLabelValues(toolName).Inc()
}

// EventPublished records one event broadcast, regardless of subscriber count.
func (m *Metrics) EventPublished(kind string) {
	m.EventsPublished.WithLabelValues(kind).Inc()
}

// EventSubscriberLagged records one lag incident.
func (m *Metrics) EventSubscriberLagged() {
	m.EventSubscriberLag.Inc()
}

// SessionStarted increments the active session gauge.
func (m *Metrics) SessionStarted() {
	m.ActiveSessions.Inc()
}

// SessionEnded decrements the active session gauge.
func (m *Metrics) SessionEnded() {
	m.ActiveSessions.Dec()
}

// RecordLLMRequest records one streaming tool-call request's outcome.
func (m *Metrics) RecordLLMRequest(status string, durationSeconds float64) {
	m.LLMRequestCounter.WithLabelValues(status).Inc()
	m.LLMRequestDuration.Observe(durationSeconds)
}
