package operator

import (
	"context"

	"k8s.io/apimachinery/pkg/types"

	"github.com/objectrunner/objectrunner/state"
)

// EventKind classifies one item from a Watcher's event stream.
type EventKind int

const (
	Added EventKind = iota
	Modified
	Deleted
	Restart
)

func (k EventKind) String() string {
	switch k {
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	case Restart:
		return "Restart"
	default:
		return "Unknown"
	}
}

// Event is one item from a Watcher's stream. Manifest is populated for
// Added/Modified/Deleted. Live is populated for Restart: the fresh list
// of identities the watch source now considers live, carried directly on
// the event rather than requiring a second out-of-band listing call.
type Event[M state.Manifest] struct {
	Kind     EventKind
	Manifest M
	Live     []types.NamespacedName
}

// Watcher is the cluster-API collaborator a Runtime consumes events
// from. The returned channel is closed when the watch ends; Watch
// itself should return promptly, doing any connection setup before the
// channel is handed back.
type Watcher[M state.Manifest] interface {
	Watch(ctx context.Context) (<-chan Event[M], error)
}
