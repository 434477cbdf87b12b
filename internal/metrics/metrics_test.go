package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTurnCounterLabelsByOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_turns_total",
			Help: "Test turn counter",
		},
		[]string{"outcome"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("success").Inc()
	counter.WithLabelValues("success").Inc()
	counter.WithLabelValues("turn_failure").Inc()

	if count := testutil.CollectAndCount(counter); count != 2 {
		t.Fatalf("expected 2 label combinations, got %d", count)
	}
}

func TestTaskQueueDepthGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "test_task_queue_depth",
			Help: "Test task queue depth",
		},
		[]string{"session_id"},
	)
	registry.MustRegister(gauge)

	gauge.WithLabelValues("session-1").Set(3)
	gauge.WithLabelValues("session-1").Dec()

	if testutil.CollectAndCount(gauge) < 1 {
		t.Fatalf("expected task queue depth gauge to be tracked")
	}
}

func TestNewReturnsSameInstanceOnRepeatedCalls(t *testing.T) {
	first := New()
	second := New()
	if first != second {
		t.Fatalf("expected New() to return the same singleton instance")
	}
}

func TestEventSubscriberLagCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_event_subscriber_lag_total",
		Help: "Test event subscriber lag counter",
	})
	registry.MustRegister(counter)

	counter.Inc()
	counter.Inc()

	if got := testutil.ToFloat64(counter); got != 2 {
		t.Fatalf("expected counter value 2, got %v", got)
	}
}
