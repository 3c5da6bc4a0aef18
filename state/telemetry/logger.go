// Package telemetry provides the klog-backed Logger, OpenTelemetry span
// observer, and Prometheus metrics observer the operator runtime wires
// into the engine. None of these are required by package state — they
// satisfy its narrow Logger and TransitionObserver interfaces, the same
// way any narrow, swappable sink would.
package telemetry

import (
	"k8s.io/klog/v2"
)

// KlogLogger adapts k8s.io/klog/v2 to state.Logger. klog is the logging
// library a Kubernetes-adjacent node agent typically depends on.
type KlogLogger struct {
	// Name prefixes every log line, typically the operator's resource
	// kind (e.g. "moose-operator").
	Name string
}

// NewKlogLogger returns a KlogLogger prefixing lines with name.
func NewKlogLogger(name string) *KlogLogger {
	return &KlogLogger{Name: name}
}

func (l *KlogLogger) Debug(msg string, kv ...any) {
	klog.V(2).InfoS(l.prefix(msg), kv...)
}

func (l *KlogLogger) Info(msg string, kv ...any) {
	klog.InfoS(l.prefix(msg), kv...)
}

func (l *KlogLogger) Warn(msg string, kv ...any) {
	klog.InfoS("WARN: "+l.prefix(msg), kv...)
}

func (l *KlogLogger) Error(msg string, kv ...any) {
	klog.ErrorS(nil, l.prefix(msg), kv...)
}

func (l *KlogLogger) prefix(msg string) string {
	if l.Name == "" {
		return msg
	}
	return l.Name + ": " + msg
}
