package state

import (
	"context"

	"k8s.io/apimachinery/pkg/types"
)

// StatusPublisher is the cluster-API collaborator the runner calls after
// every state's Status method succeeds. Implementations must be
// idempotent under equal inputs and best-effort: a failure here never
// stops the machine.
type StatusPublisher interface {
	PatchStatus(ctx context.Context, key types.NamespacedName, patch map[string]any) error
}
