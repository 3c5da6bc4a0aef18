// Package operator implements the control loop that turns a stream of
// cluster events into a population of long-running per-object state
// machines (C6 Operator contract, C7 Operator runtime).
package operator

import (
	"context"

	"github.com/objectrunner/objectrunner/state"
)

// Operator is the user-supplied factory a Runtime is built from: the
// states every object starts and ends in, how to construct a per-object
// bundle, and where the provider-wide shared store lives. Both
// InitialState and DeletedState are called fresh for every object --
// any configuration they need is threaded through H, not through
// arguments the Runtime doesn't have.
type Operator[H any, B state.Bundle[H], M state.Manifest, S state.Status[S]] interface {
	InitialState() state.State[H, B, M, S]
	DeletedState() state.State[H, B, M, S]

	// InitializeObjectState runs once per newly observed object. A
	// returned error means no machine is started for manifest; the
	// Runtime publishes a failed Status and creates no registry entry.
	InitializeObjectState(ctx context.Context, manifest M) (*B, error)

	// SharedState returns the provider-wide store. The Runtime calls
	// this when it starts each object's runner and again when it calls
	// that object's AsyncDrop; implementations should return the same
	// pointer every time.
	SharedState() *state.Shared[H]
}
