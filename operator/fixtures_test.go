package operator

import (
	"context"
	"sync"

	"k8s.io/apimachinery/pkg/types"

	"github.com/objectrunner/objectrunner/state"
)

// The fixtures below model a trimmed two-state moose: opStart -> opRoam,
// with opRoam self-looping until released, and opDeleted as the
// DeletedState. A real deletion of an object in opRoam means overriding
// an in-flight, self-looping Next with the deleted transition.

type opManifest struct {
	key types.NamespacedName
}

func (m opManifest) Identity() types.NamespacedName { return m.key }

type opStatus struct {
	phase   string
	message string
}

func (s opStatus) Failed(msg string) opStatus {
	return opStatus{message: "failed: " + msg}
}

func (s opStatus) Patch() map[string]any {
	patch := map[string]any{}
	if s.phase != "" {
		patch["phase"] = s.phase
	}
	if s.message != "" {
		patch["message"] = s.message
	}
	return patch
}

// opShared carries no lock of its own: state.Shared[opShared] already
// serializes every access behind its RWMutex, so a second, object-level
// mutex here would only double-lock.
type opShared struct {
	dropped []string
}

func (h *opShared) recordDrop(name string) {
	h.dropped = append(h.dropped, name)
}

type opBundle struct {
	name    string
	release chan struct{} // closed by the test to unblock opRoam.Next
}

func (b opBundle) AsyncDrop(ctx context.Context, shared *state.Shared[opShared]) {
	shared.Write(func(h *opShared) { h.recordDrop(b.name) })
}

type opState = state.State[opShared, opBundle, opManifest, opStatus]
type opTransition = state.Transition[opShared, opBundle, opManifest, opStatus]

type opStartState struct{}

func (opStartState) Label() string { return "Start" }
func (opStartState) Status(ctx context.Context, bundle *opBundle, manifest opManifest) (opStatus, error) {
	return opStatus{phase: "Start"}, nil
}
func (s opStartState) Next(ctx context.Context, shared *state.Shared[opShared], bundle *opBundle, manifest opManifest) opTransition {
	return state.Next[opShared, opBundle, opManifest, opStatus](s, opRoamState{})
}

type opRoamState struct{}

func (opRoamState) Label() string { return "Roam" }
func (opRoamState) Status(ctx context.Context, bundle *opBundle, manifest opManifest) (opStatus, error) {
	return opStatus{phase: "Roam"}, nil
}
func (r opRoamState) Next(ctx context.Context, shared *state.Shared[opShared], bundle *opBundle, manifest opManifest) opTransition {
	<-bundle.release // the "long sleep" suspension point
	return state.Next[opShared, opBundle, opManifest, opStatus](r, opRoamState{})
}

type opDeletedState struct{}

func (opDeletedState) Label() string { return "Deleted" }
func (opDeletedState) Status(ctx context.Context, bundle *opBundle, manifest opManifest) (opStatus, error) {
	return opStatus{message: "bye"}, nil
}
func (d opDeletedState) Next(ctx context.Context, shared *state.Shared[opShared], bundle *opBundle, manifest opManifest) opTransition {
	return state.Complete[opShared, opBundle, opManifest, opStatus](nil)
}

func init() {
	state.RegisterEdge[opStartState, opRoamState]()
	state.RegisterEdge[opRoamState, opRoamState]()
}

// opOperator is the test double for Operator[opShared, opBundle, opManifest, opStatus].
type opOperator struct {
	shared *state.Shared[opShared]

	mu       sync.Mutex
	releases map[string]chan struct{}
	initErrs map[string]error
}

func newOpOperator() *opOperator {
	return &opOperator{
		shared:   state.NewShared(&opShared{}),
		releases: make(map[string]chan struct{}),
		initErrs: make(map[string]error),
	}
}

func (o *opOperator) InitialState() opState { return opStartState{} }
func (o *opOperator) DeletedState() opState { return opDeletedState{} }

func (o *opOperator) InitializeObjectState(ctx context.Context, m opManifest) (*opBundle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err, ok := o.initErrs[m.key.Name]; ok {
		return nil, err
	}
	ch, ok := o.releases[m.key.Name]
	if !ok {
		ch = make(chan struct{})
		o.releases[m.key.Name] = ch
	}
	return &opBundle{name: m.key.Name, release: ch}, nil
}

func (o *opOperator) SharedState() *state.Shared[opShared] { return o.shared }

// release unblocks the named object's opRoam.Next, exactly once.
func (o *opOperator) release(name string) {
	o.mu.Lock()
	ch := o.releases[name]
	o.mu.Unlock()
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func (o *opOperator) failInit(name string, err error) {
	o.mu.Lock()
	o.initErrs[name] = err
	o.mu.Unlock()
}

type opWatcher struct {
	ch chan Event[opManifest]
}

func newOpWatcher() *opWatcher {
	return &opWatcher{ch: make(chan Event[opManifest], 16)}
}

func (w *opWatcher) Watch(ctx context.Context) (<-chan Event[opManifest], error) {
	return w.ch, nil
}

func (w *opWatcher) send(ev Event[opManifest]) { w.ch <- ev }

type opPublisher struct {
	mu      sync.Mutex
	patches map[types.NamespacedName][]map[string]any
}

func newOpPublisher() *opPublisher {
	return &opPublisher{patches: make(map[types.NamespacedName][]map[string]any)}
}

func (p *opPublisher) PatchStatus(ctx context.Context, key types.NamespacedName, patch map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.patches[key] = append(p.patches[key], patch)
	return nil
}

func (p *opPublisher) count(key types.NamespacedName) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.patches[key])
}

func (p *opPublisher) last(key types.NamespacedName) map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	patches := p.patches[key]
	if len(patches) == 0 {
		return nil
	}
	return patches[len(patches)-1]
}

// recordingObserver reports every state entry, and optionally notifies a
// per-label callback so a test can wait for an object to reach a state
// deterministically instead of polling on a timer.
type recordingObserver struct {
	mu      sync.Mutex
	entered map[string]int
	onEnter func(objectKey, label string)
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{entered: make(map[string]int)}
}

func (o *recordingObserver) OnEnter(ctx context.Context, objectKey, label string) {
	o.mu.Lock()
	o.entered[objectKey+":"+label]++
	o.mu.Unlock()
	if o.onEnter != nil {
		o.onEnter(objectKey, label)
	}
}

func (o *recordingObserver) OnExit(ctx context.Context, objectKey, label string, outcome state.Outcome, err error) {
}

func (o *recordingObserver) count(objectKey, label string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.entered[objectKey+":"+label]
}
