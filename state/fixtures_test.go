package state

import (
	"context"
	"sync"

	"k8s.io/apimachinery/pkg/types"
)

// Test fixtures model a tiny two-state machine: fixtureA -> fixtureB ->
// complete, analogous to the moose tracker's Tagged -> Roam graph but
// trimmed to what the engine-level tests need.

type fixtureManifest struct {
	key types.NamespacedName
}

func (m fixtureManifest) Identity() types.NamespacedName { return m.key }

type fixtureStatus struct {
	phase   string
	message string
}

func (s fixtureStatus) Failed(msg string) fixtureStatus {
	return fixtureStatus{message: "failed: " + msg}
}

func (s fixtureStatus) Patch() map[string]any {
	patch := map[string]any{}
	if s.phase != "" {
		patch["phase"] = s.phase
	}
	if s.message != "" {
		patch["message"] = s.message
	}
	return patch
}

type fixtureShared struct {
	seen []string
}

type fixtureBundle struct {
	name string
}

// AsyncDrop has a value receiver: the Bundle[H] constraint is satisfied by
// the bundle type itself, not its pointer, so the runtime can call it
// through the same *B it threaded through every Next call.
func (b fixtureBundle) AsyncDrop(ctx context.Context, shared *Shared[fixtureShared]) {
	shared.Write(func(h *fixtureShared) {
		h.seen = append(h.seen, "dropped:"+b.name)
	})
}

type fixtureState = State[fixtureShared, fixtureBundle, fixtureManifest, fixtureStatus]
type fixtureTransition = Transition[fixtureShared, fixtureBundle, fixtureManifest, fixtureStatus]

type fixtureA struct{}

func (fixtureA) Label() string { return "A" }
func (fixtureA) Status(ctx context.Context, bundle *fixtureBundle, manifest fixtureManifest) (fixtureStatus, error) {
	return fixtureStatus{phase: "A"}, nil
}
func (a fixtureA) Next(ctx context.Context, shared *Shared[fixtureShared], bundle *fixtureBundle, manifest fixtureManifest) fixtureTransition {
	return Next[fixtureShared, fixtureBundle, fixtureManifest, fixtureStatus](a, fixtureB{})
}

type fixtureB struct{}

func (fixtureB) Label() string { return "B" }
func (fixtureB) Status(ctx context.Context, bundle *fixtureBundle, manifest fixtureManifest) (fixtureStatus, error) {
	return fixtureStatus{phase: "B"}, nil
}
func (b fixtureB) Next(ctx context.Context, shared *Shared[fixtureShared], bundle *fixtureBundle, manifest fixtureManifest) fixtureTransition {
	return Complete[fixtureShared, fixtureBundle, fixtureManifest, fixtureStatus](nil)
}

type fixtureDeleted struct{}

func (fixtureDeleted) Label() string { return "Deleted" }
func (fixtureDeleted) Status(ctx context.Context, bundle *fixtureBundle, manifest fixtureManifest) (fixtureStatus, error) {
	return fixtureStatus{phase: "", message: "bye"}, nil
}
func (d fixtureDeleted) Next(ctx context.Context, shared *Shared[fixtureShared], bundle *fixtureBundle, manifest fixtureManifest) fixtureTransition {
	return Complete[fixtureShared, fixtureBundle, fixtureManifest, fixtureStatus](nil)
}

func init() {
	RegisterEdge[fixtureA, fixtureB]()
}

type fixturePublisher struct {
	mu      sync.Mutex
	patches []map[string]any
}

func (p *fixturePublisher) PatchStatus(ctx context.Context, key types.NamespacedName, patch map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.patches = append(p.patches, patch)
	return nil
}

func (p *fixturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.patches)
}
