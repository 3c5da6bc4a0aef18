package state

import "context"

// Logger is the narrow structured-logging sink the runner writes to. The
// concrete klog-backed implementation lives in package telemetry; state
// only depends on this interface so the engine stays free of any
// particular logging backend.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// NopLogger discards everything. It is the Runner's default when no
// Logger is supplied.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// Outcome classifies how a state's occupancy of the machine ended, for
// the benefit of TransitionObserver implementations (tracing, metrics).
type Outcome string

const (
	OutcomeNext           Outcome = "next"
	OutcomeComplete       Outcome = "complete"
	OutcomeCompleteError  Outcome = "complete_error"
	OutcomeFatal          Outcome = "fatal"
	OutcomeStatusError    Outcome = "status_error"
	OutcomePublishFailure Outcome = "publish_failure"
)

// TransitionObserver receives a callback around every state's occupancy
// of the machine. Implementations must not block the runner for long —
// the same non-blocking discipline any hot-path callback must honor.
// Both state entry and exit are reported so an
// observer can build span-per-state tracing (state/telemetry.SpanObserver)
// or counters (state/telemetry.Metrics).
type TransitionObserver interface {
	OnEnter(ctx context.Context, objectKey string, label string)
	OnExit(ctx context.Context, objectKey string, label string, outcome Outcome, err error)
}

// MultiObserver fans a single callback out to several observers, letting
// a Runner report to tracing and metrics simultaneously.
type MultiObserver []TransitionObserver

func (m MultiObserver) OnEnter(ctx context.Context, objectKey, label string) {
	for _, o := range m {
		if o != nil {
			o.OnEnter(ctx, objectKey, label)
		}
	}
}

func (m MultiObserver) OnExit(ctx context.Context, objectKey, label string, outcome Outcome, err error) {
	for _, o := range m {
		if o != nil {
			o.OnExit(ctx, objectKey, label, outcome, err)
		}
	}
}

// NopObserver observes nothing. It is the Runner's default.
type NopObserver struct{}

func (NopObserver) OnEnter(context.Context, string, string)                {}
func (NopObserver) OnExit(context.Context, string, string, Outcome, error) {}
