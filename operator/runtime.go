package operator

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/types"

	"github.com/objectrunner/objectrunner/state"
)

// entry is the Runtime's registry record for one live object: the cell
// its runner reads manifest snapshots from, the deletion signal, and the
// bundle the Runtime (not the runner) is responsible for tearing down.
type entry[H any, B state.Bundle[H], M state.Manifest, S state.Status[S]] struct {
	manifest *state.ManifestCell[M]
	gate     *state.DeletionGate[H, B, M, S]
	bundle   *B
}

// Runtime is the operator control loop: it watches a resource kind, fans
// events out to per-object runners, and owns their creation and
// teardown. There is at most one registry entry, and therefore at most
// one runner, per object identity.
type Runtime[H any, B state.Bundle[H], M state.Manifest, S state.Status[S]] struct {
	op        Operator[H, B, M, S]
	publisher state.StatusPublisher
	watcher   Watcher[M]
	cfg       config

	mu       sync.Mutex
	registry map[types.NamespacedName]*entry[H, B, M, S]

	group *errgroup.Group
}

// New constructs a Runtime. publisher is the cluster-API collaborator
// every object runner patches status through.
func New[H any, B state.Bundle[H], M state.Manifest, S state.Status[S]](
	op Operator[H, B, M, S],
	publisher state.StatusPublisher,
	watcher Watcher[M],
	opts ...Option,
) *Runtime[H, B, M, S] {
	cfg := config{}
	for _, o := range opts {
		o(&cfg)
	}
	return &Runtime[H, B, M, S]{
		op:        op,
		publisher: publisher,
		watcher:   watcher,
		cfg:       cfg,
		registry:  make(map[types.NamespacedName]*entry[H, B, M, S]),
	}
}

// Start opens the watch and runs the control loop until ctx is cancelled
// or the watch stream closes. On return, every object runner started
// during this call has been signalled to delete and awaited: there is
// no hard timeout, Start simply waits for every runner to finish.
func (r *Runtime[H, B, M, S]) Start(ctx context.Context) error {
	events, err := r.watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("operator: watch: %w", err)
	}

	group, gctx := errgroup.WithContext(ctx)
	r.group = group

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return group.Wait()
		case ev, ok := <-events:
			if !ok {
				r.shutdown()
				return group.Wait()
			}
			r.handle(gctx, ev)
		}
	}
}

// shutdown signals every live entry's deletion gate so their runners
// unwind through DeletedState instead of being abandoned mid-machine.
func (r *Runtime[H, B, M, S]) shutdown() {
	r.mu.Lock()
	entries := make([]*entry[H, B, M, S], 0, len(r.registry))
	for _, e := range r.registry {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.gate.Signal(r.op.DeletedState())
	}
}

func (r *Runtime[H, B, M, S]) handle(ctx context.Context, ev Event[M]) {
	switch ev.Kind {
	case Added:
		r.handleAdded(ctx, ev.Manifest)
	case Modified:
		r.handleModified(ctx, ev.Manifest)
	case Deleted:
		r.handleDeleted(ev.Manifest)
	case Restart:
		r.handleRestart(ev.Live)
	}
}

// handleAdded treats an identity already in the registry as Modified;
// otherwise it allocates a bundle and spawns a runner.
func (r *Runtime[H, B, M, S]) handleAdded(ctx context.Context, m M) {
	key := m.Identity()

	r.mu.Lock()
	if e, ok := r.registry[key]; ok {
		r.mu.Unlock()
		e.manifest.Replace(m)
		return
	}
	r.mu.Unlock()

	bundle, err := r.op.InitializeObjectState(ctx, m)
	if err != nil {
		r.cfg.logVal().Warn("bundle init failed", "object", key, "err", err)
		if r.cfg.metrics != nil {
			r.cfg.metrics.BundleInitFailed()
		}
		var zero S
		failed := zero.Failed(err.Error())
		if pubErr := r.publisher.PatchStatus(ctx, key, failed.Patch()); pubErr != nil {
			r.cfg.logVal().Warn("failed-status publish failed", "object", key, "err", pubErr)
		}
		return
	}

	e := &entry[H, B, M, S]{
		manifest: state.NewManifestCell(m),
		gate:     state.NewDeletionGate[H, B, M, S](),
		bundle:   bundle,
	}

	r.mu.Lock()
	r.registry[key] = e
	r.mu.Unlock()

	r.spawn(ctx, key, e)
}

// handleModified reconciles an identity with no registry entry
// defensively as a fresh Added, since a watch source may legitimately
// coalesce a missed creation into the first Modified it can deliver.
func (r *Runtime[H, B, M, S]) handleModified(ctx context.Context, m M) {
	key := m.Identity()

	r.mu.Lock()
	e, ok := r.registry[key]
	r.mu.Unlock()

	if !ok {
		r.handleAdded(ctx, m)
		return
	}
	e.manifest.Replace(m)
}

// handleDeleted replaces the manifest, then fires the level-triggered
// deletion signal. Teardown (AsyncDrop, registry removal) happens in the
// goroutine spawn started, once RunToCompletion returns (see spawn).
func (r *Runtime[H, B, M, S]) handleDeleted(m M) {
	key := m.Identity()

	r.mu.Lock()
	e, ok := r.registry[key]
	r.mu.Unlock()
	if !ok {
		return
	}

	e.manifest.Replace(m)
	e.gate.Signal(r.op.DeletedState())
}

// handleRestart synthesizes a Deleted for every registry entry absent
// from the fresh live list, without a manifest replacement since none
// was observed.
func (r *Runtime[H, B, M, S]) handleRestart(live []types.NamespacedName) {
	liveSet := make(map[types.NamespacedName]struct{}, len(live))
	for _, k := range live {
		liveSet[k] = struct{}{}
	}

	r.mu.Lock()
	stale := make([]*entry[H, B, M, S], 0)
	for key, e := range r.registry {
		if _, ok := liveSet[key]; !ok {
			stale = append(stale, e)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		e.gate.Signal(r.op.DeletedState())
	}
}

// spawn starts the object runner goroutine. It always returns nil to
// the errgroup: a single object's domain failure, Fatal transition, or
// recovered panic must never cancel its siblings. After RunToCompletion
// returns by any path, this goroutine -- not the runner -- calls
// AsyncDrop and removes the registry entry, in that order.
func (r *Runtime[H, B, M, S]) spawn(ctx context.Context, key types.NamespacedName, e *entry[H, B, M, S]) {
	if r.cfg.metrics != nil {
		r.cfg.metrics.ObjectStarted()
	}

	r.group.Go(func() error {
		observer := r.buildObserver(key)
		runErr := state.RunToCompletion[H, B, M, S](
			ctx, r.publisher, r.op.InitialState(), r.op.SharedState(), e.bundle, e.manifest, e.gate,
			state.Options{Logger: r.cfg.logVal(), Observer: observer},
		)
		if runErr != nil {
			r.cfg.logVal().Warn("object runner ended with error", "object", key, "err", runErr)
		}

		e.bundle.AsyncDrop(ctx, r.op.SharedState())
		if r.cfg.metrics != nil {
			r.cfg.metrics.AsyncDropped()
			r.cfg.metrics.ObjectStopped()
		}

		r.mu.Lock()
		delete(r.registry, key)
		r.mu.Unlock()

		return nil
	})
}

func (r *Runtime[H, B, M, S]) buildObserver(key types.NamespacedName) state.TransitionObserver {
	var obs state.MultiObserver
	if r.cfg.observer != nil {
		obs = append(obs, r.cfg.observer)
	}
	if r.cfg.tracer != nil {
		obs = append(obs, r.cfg.tracer)
	}
	if r.cfg.metrics != nil {
		obs = append(obs, r.cfg.metrics)
	}
	if r.cfg.fatalHandler != nil {
		obs = append(obs, fatalRelay{key: key, handler: r.cfg.fatalHandler})
	}
	return obs
}

// fatalRelay watches transition outcomes for a single object and invokes
// the Runtime's FatalHandler exactly when one is OutcomeFatal, recovering
// the Fatal/Complete(err) distinction that RunToCompletion's plain error
// return otherwise loses.
type fatalRelay struct {
	key     types.NamespacedName
	handler func(types.NamespacedName, error)
}

func (fatalRelay) OnEnter(ctx context.Context, objectKey, label string) {}

func (f fatalRelay) OnExit(ctx context.Context, objectKey, label string, outcome state.Outcome, err error) {
	if outcome == state.OutcomeFatal {
		f.handler(f.key, err)
	}
}
