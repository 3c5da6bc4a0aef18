package state

import (
	"fmt"
	"reflect"
	"sync"
)

// edgeKey identifies an ordered (from, to) state-type pair by their
// concrete dynamic Go types. Edges are keyed on concrete types rather
// than on the (H, B, M, S) instantiation of State, because two states in
// the same operator always share one instantiation — only the concrete
// state type varies at a call site.
type edgeKey struct {
	from reflect.Type
	to   reflect.Type
}

var (
	edgeMu sync.RWMutex
	edges  = map[edgeKey]struct{}{}
)

// RegisterEdge declares that a value of concrete type From may transition
// to a value of concrete type To via Next. Edges form a process-wide set,
// populated before any Runtime.Start returns — the engine itself never
// reads this set; only Next does (spec's "dynamic target" enforcement
// strategy, since Go generics cannot express a TransitionTo<From, To>
// marker-trait bound the way a capability-bound generic system can).
//
// Self-edges are not implied and must be registered explicitly.
func RegisterEdge[From, To any]() {
	edgeMu.Lock()
	defer edgeMu.Unlock()
	edges[edgeKey{from: reflect.TypeFor[From](), to: reflect.TypeFor[To]()}] = struct{}{}
}

// requireEdge panics if no edge from the concrete dynamic type of from to
// the concrete dynamic type of to has been registered. This is the sole
// gate a Transition's Next constructor passes through.
func requireEdge(from, to any) {
	edgeMu.RLock()
	_, ok := edges[edgeKey{from: reflect.TypeOf(from), to: reflect.TypeOf(to)}]
	edgeMu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("state: no registered edge from %s to %s; call state.RegisterEdge[%s, %s]() at init time",
			reflect.TypeOf(from), reflect.TypeOf(to), reflect.TypeOf(from), reflect.TypeOf(to)))
	}
}
