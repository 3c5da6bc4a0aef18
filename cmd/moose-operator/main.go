// Command moose-operator is a runnable demo wiring the moose tracker
// (examples/moose) to the operator runtime. Its watcher is an in-memory
// simulator standing in for a real cluster API's list-then-watch stream,
// and its StatusPublisher logs patches via klog instead of calling a
// cluster API: wire-level status publishing is out of scope here.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/klog/v2"

	"github.com/objectrunner/objectrunner/examples/moose"
	"github.com/objectrunner/objectrunner/operator"
	"github.com/objectrunner/objectrunner/state/telemetry"
)

// simWatcher stands in for ListParams().labels("nps.gov/park=glacier")
// plus the subsequent watch: it "discovers" a handful of mooses and
// otherwise idles, closing its channel when ctx is cancelled.
type simWatcher struct {
	namespace string
	selector  string
	ch        chan operator.Event[moose.Manifest]
}

func newSimWatcher(namespace, selector string) *simWatcher {
	return &simWatcher{namespace: namespace, selector: selector, ch: make(chan operator.Event[moose.Manifest], 8)}
}

func (w *simWatcher) Watch(ctx context.Context) (<-chan operator.Event[moose.Manifest], error) {
	go w.run(ctx)
	return w.ch, nil
}

func (w *simWatcher) run(ctx context.Context) {
	defer close(w.ch)
	mooses := []moose.Manifest{
		{Key: types.NamespacedName{Namespace: w.namespace, Name: "alice"}, Height: 2.1, Weight: 500, Antlers: true},
		{Key: types.NamespacedName{Namespace: w.namespace, Name: "bob"}, Height: 1.9, Weight: 430, Antlers: false},
		{Key: types.NamespacedName{Namespace: w.namespace, Name: "carl"}, Height: 2.3, Weight: 610, Antlers: true},
	}
	for _, m := range mooses {
		select {
		case <-ctx.Done():
			return
		case w.ch <- operator.Event[moose.Manifest]{Kind: operator.Added, Manifest: m}:
		case <-time.After(200 * time.Millisecond):
		}
	}
	<-ctx.Done()
}

// logPublisher logs every status patch instead of calling a cluster API.
type logPublisher struct{}

func (logPublisher) PatchStatus(ctx context.Context, key types.NamespacedName, patch map[string]any) error {
	klog.InfoS("status patch", "object", key, "patch", patch)
	return nil
}

func newRootCmd() *cobra.Command {
	var namespace, selector string

	cmd := &cobra.Command{
		Use:   "moose-operator",
		Short: "Demo operator tracking tagged mooses through a national park",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			tp := sdktrace.NewTracerProvider()
			otel.SetTracerProvider(tp)
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				_ = tp.Shutdown(shutdownCtx)
			}()

			tracker := moose.NewTracker()
			watcher := newSimWatcher(namespace, selector)
			metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
			tracer := telemetry.NewSpanObserver(otel.Tracer("moose-operator"))
			logger := telemetry.NewKlogLogger("moose-operator")

			runtime := operator.New[moose.Shared, moose.Bundle, moose.Manifest, moose.Status](
				tracker, logPublisher{}, watcher,
				operator.WithLogger(logger),
				operator.WithMetrics(metrics),
				operator.WithTracer(tracer),
			)

			klog.InfoS("starting moose operator", "namespace", namespace, "selector", selector)
			return runtime.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "glacier-np", "namespace mooses are tracked in")
	cmd.Flags().StringVar(&selector, "selector", "nps.gov/park=glacier", "label selector narrowing the watched set")

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		klog.ErrorS(err, "moose-operator exited with error")
		os.Exit(1)
	}
}
