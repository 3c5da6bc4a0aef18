// Package state implements the generic, typed state-machine engine that
// drives a single cluster-managed object through a directed graph of
// states: Transition (C1), State (C2), the edge table (C3), the
// per-object bundle (C4), and the object runner (C5).
package state

import (
	"context"

	"k8s.io/apimachinery/pkg/types"
)

// Manifest is an immutable snapshot of the cluster's view of one resource.
// Implementations must have a stable identity; equality/version ordering
// is the cluster API's concern, not the engine's.
type Manifest interface {
	// Identity returns the namespace/name pair this manifest describes.
	Identity() types.NamespacedName
}

// Status is a partial, mergeable description of what the runtime wishes
// the cluster to observe. It is declared as an F-bounded interface (S
// constrained by Status[S]) so that Failed can return the concrete status
// type rather than the interface, closing over a single concrete status
// type the way a self-referential generic accumulator does.
type Status[S any] interface {
	// Failed produces a Status describing a machine-level failure. It is
	// invoked on the zero value of S, so implementations must not depend
	// on receiver fields: treat it as a static constructor.
	Failed(msg string) S

	// Patch projects the Status to a cluster-API patch document containing
	// only the fields this Status wishes to set. The engine never
	// interprets the contents; it is opaque to everything but the
	// StatusPublisher collaborator.
	Patch() map[string]any
}

// Bundle is the per-object mutable context a State's Next method
// manipulates. The concrete bundle type is supplied by the operator
// author; only its teardown hook is contractual to the engine.
type Bundle[H any] interface {
	// AsyncDrop runs exactly once, strictly after this object's final
	// Next call returns and strictly before the object's identity may be
	// reused by a subsequent Added event. The runtime, not the state
	// machine itself, is the only caller.
	AsyncDrop(ctx context.Context, shared *Shared[H])
}

// State is a node in an object's state graph. A fixed quadruple of type
// parameters (H, B, M, S) is shared by every state in one operator's
// graph; individual states differ only in their concrete Go type.
type State[H any, B Bundle[H], M Manifest, S Status[S]] interface {
	// Label is a stable, human-readable name used only for logging and
	// tracing; it carries no semantic weight for the engine.
	Label() string

	// Status produces the Status to publish when entering this state. It
	// must not mutate bundle in any way observable across suspension
	// points — next is the only place side effects belong.
	Status(ctx context.Context, bundle *B, manifest M) (S, error)

	// Next performs this state's side effects and returns the successor.
	// It is the only method permitted to mutate bundle and the shared
	// store, and it may suspend arbitrarily long (long polls, sleeps,
	// cluster API calls).
	Next(ctx context.Context, shared *Shared[H], bundle *B, manifest M) Transition[H, B, M, S]
}
