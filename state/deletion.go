package state

import "sync"

// DeletionGate is the level-triggered deletion signal: once Signal is
// called, every subsequent loop iteration of RunToCompletion adopts the
// operator's DeletedState in place of any Next(q') the in-flight Next
// call returns. A pending Next call is never cancelled in-flight; only a
// Next(q') transition it produces is overridden. A Complete or Fatal
// result still ends the machine without entering DeletedState.
type DeletionGate[H any, B Bundle[H], M Manifest, S Status[S]] struct {
	once    sync.Once
	ch      chan struct{}
	deleted State[H, B, M, S]
}

// NewDeletionGate returns a gate that has not yet fired.
func NewDeletionGate[H any, B Bundle[H], M Manifest, S Status[S]]() *DeletionGate[H, B, M, S] {
	return &DeletionGate[H, B, M, S]{ch: make(chan struct{})}
}

// Signal fires the gate exactly once; subsequent calls are no-ops. Only
// the first deletedState passed wins.
func (g *DeletionGate[H, B, M, S]) Signal(deletedState State[H, B, M, S]) {
	g.once.Do(func() {
		g.deleted = deletedState
		close(g.ch)
	})
}

// Triggered reports whether Signal has fired.
func (g *DeletionGate[H, B, M, S]) Triggered() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}

// DeletedState returns the state installed by Signal. It is only valid
// to call after Triggered reports true.
func (g *DeletionGate[H, B, M, S]) DeletedState() State[H, B, M, S] {
	return g.deleted
}
