package operator

import (
	"k8s.io/apimachinery/pkg/types"

	"github.com/objectrunner/objectrunner/state"
	"github.com/objectrunner/objectrunner/state/telemetry"
)

// config collects the optional collaborators a Runtime may be given.
// None of these are generic over (H, B, M, S): Logger, TransitionObserver,
// and the telemetry types are already narrow enough to be shared by every
// instantiation, so Option stays a plain function instead of repeating
// the Runtime's four type parameters at every call site.
type config struct {
	logger       state.Logger
	observer     state.TransitionObserver
	tracer       *telemetry.SpanObserver
	metrics      *telemetry.Metrics
	fatalHandler func(types.NamespacedName, error)
}

func (c config) logVal() state.Logger {
	if c.logger == nil {
		return state.NopLogger{}
	}
	return c.logger
}

// Option configures a Runtime at construction time.
type Option func(*config)

// WithLogger installs a structured logger for every object runner.
func WithLogger(l state.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithObserver installs an additional TransitionObserver alongside the
// Runtime's own telemetry observers.
func WithObserver(o state.TransitionObserver) Option {
	return func(c *config) { c.observer = o }
}

// WithTracer installs an OpenTelemetry span-per-state observer.
func WithTracer(t *telemetry.SpanObserver) Option {
	return func(c *config) { c.tracer = t }
}

// WithMetrics installs a Prometheus metrics observer.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithFatalHandler registers a callback invoked whenever an object's
// machine ends via Fatal rather than Complete. The Runtime never stops
// other runners on its own account; a handler that wants to stop the
// whole Runtime should cancel the context Start was called with.
func WithFatalHandler(fn func(types.NamespacedName, error)) Option {
	return func(c *config) { c.fatalHandler = fn }
}
