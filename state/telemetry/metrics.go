package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/objectrunner/objectrunner/state"
)

// Metrics collects Prometheus-compatible performance metrics for the
// operator runtime: gauges for live state, counters for outcomes, a
// histogram for per-state occupancy latency.
type Metrics struct {
	objectsActive     prometheus.Gauge
	transitionsTotal  *prometheus.CounterVec
	stateDuration     *prometheus.HistogramVec
	statusPublishFail prometheus.Counter
	bundleInitFail    prometheus.Counter
	asyncDropTotal    prometheus.Counter

	mu    sync.Mutex
	enter map[string]time.Time // objectKey -> entry time, for stateDuration
}

// NewMetrics registers all objectrunner_* metrics with registry. Pass
// prometheus.DefaultRegisterer to use the global registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		objectsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "objectrunner",
			Name:      "objects_active",
			Help:      "Number of objects currently driven by a live runner.",
		}),
		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "objectrunner",
			Name:      "transitions_total",
			Help:      "Count of state occupancies by state label and outcome.",
		}, []string{"state", "outcome"}),
		stateDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "objectrunner",
			Name:      "state_duration_seconds",
			Help:      "Wall-clock time an object spent occupying one state.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		statusPublishFail: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "objectrunner",
			Name:      "status_publish_failures_total",
			Help:      "Count of best-effort PatchStatus calls that failed.",
		}),
		bundleInitFail: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "objectrunner",
			Name:      "bundle_init_failures_total",
			Help:      "Count of InitializeObjectState failures.",
		}),
		asyncDropTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "objectrunner",
			Name:      "async_drop_total",
			Help:      "Count of bundle AsyncDrop invocations.",
		}),
		enter: make(map[string]time.Time),
	}
}

// ObjectStarted/ObjectStopped track the objects_active gauge; the
// operator.Runtime calls these around spawning and reaping a runner
// goroutine (they are not part of state.TransitionObserver since they
// track object lifetime, not per-state occupancy).
func (m *Metrics) ObjectStarted() { m.objectsActive.Inc() }
func (m *Metrics) ObjectStopped() { m.objectsActive.Dec() }

// BundleInitFailed records an InitializeObjectState failure.
func (m *Metrics) BundleInitFailed() { m.bundleInitFail.Inc() }

// AsyncDropped records a completed AsyncDrop.
func (m *Metrics) AsyncDropped() { m.asyncDropTotal.Inc() }

// OnEnter implements state.TransitionObserver. A single *Metrics is
// shared across every object's runner goroutine, so enter is guarded by
// mu the same way SpanObserver guards its spans map.
func (m *Metrics) OnEnter(ctx context.Context, objectKey, label string) {
	m.mu.Lock()
	m.enter[objectKey] = time.Now()
	m.mu.Unlock()
}

// OnExit implements state.TransitionObserver.
func (m *Metrics) OnExit(ctx context.Context, objectKey, label string, outcome state.Outcome, err error) {
	m.transitionsTotal.WithLabelValues(label, string(outcome)).Inc()
	if outcome == state.OutcomePublishFailure {
		m.statusPublishFail.Inc()
	}

	m.mu.Lock()
	start, ok := m.enter[objectKey]
	if ok {
		delete(m.enter, objectKey)
	}
	m.mu.Unlock()

	if ok {
		m.stateDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}
}
