package state

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/types"
)

// Options configures a single RunToCompletion call. Zero value is valid:
// a nil Logger/TransitionObserver degrades to NopLogger/NopObserver,
// the zero value is always valid, requiring no constructor.
type Options struct {
	Logger   Logger
	Observer TransitionObserver
}

func (o Options) logger() Logger {
	if o.Logger == nil {
		return NopLogger{}
	}
	return o.Logger
}

func (o Options) observer() TransitionObserver {
	if o.Observer == nil {
		return NopObserver{}
	}
	return o.Observer
}

// RunToCompletion drives a single object through its state graph. It
// reads a fresh manifest snapshot every iteration, publishes the current
// state's Status before invoking its Next, and loops until a Complete or
// Fatal transition is produced. A panic inside a state's Status or Next
// is recovered and reported as a Complete(err), so one failing object
// can never take down the goroutine pool the Runtime shares across all
// objects.
//
// Deletion is level-triggered: the gate may fire at any point, every
// loop iteration starts by checking it, and a Next(q') produced while
// the gate is armed is overridden to the deleted state rather than
// followed.
func RunToCompletion[H any, B Bundle[H], M Manifest, S Status[S]](
	ctx context.Context,
	publisher StatusPublisher,
	initial State[H, B, M, S],
	shared *Shared[H],
	bundle *B,
	manifest *ManifestCell[M],
	gate *DeletionGate[H, B, M, S],
	opts Options,
) (err error) {
	logger := opts.logger()
	observer := opts.observer()
	var key types.NamespacedName

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in state handler: %v", r)
			// As for Complete(err): publish a failed status, best-effort,
			// and never let a panicking publisher escape the recovery.
			func() {
				defer func() { _ = recover() }()
				var zero S
				if pubErr := publisher.PatchStatus(ctx, key, zero.Failed(err.Error()).Patch()); pubErr != nil {
					logger.Warn("failed-status publish failed", "object", key, "err", pubErr)
				}
			}()
		}
	}()

	current := initial

	for {
		if gate.Triggered() {
			current = gate.DeletedState()
		}

		snapshot := manifest.Snapshot()
		key = snapshot.Identity()
		label := current.Label()
		logger.Debug("entering state", "object", key, "state", label)
		observer.OnEnter(ctx, key.String(), label)

		status, statusErr := current.Status(ctx, bundle, snapshot)
		if statusErr != nil {
			// A state that cannot describe itself cannot be safely
			// executed — its Next is never called.
			logger.Warn("status production failed", "object", key, "state", label, "err", statusErr)
			observer.OnExit(ctx, key.String(), label, OutcomeStatusError, statusErr)
			return statusErr
		}

		if pubErr := publisher.PatchStatus(ctx, key, status.Patch()); pubErr != nil {
			logger.Warn("status publish failed", "object", key, "state", label, "err", pubErr)
			observer.OnExit(ctx, key.String(), label, OutcomePublishFailure, pubErr)
			// best-effort: a publish failure never stops the machine.
		}

		transition := current.Next(ctx, shared, bundle, snapshot)

		switch transition.kind {
		case kindNext:
			if gate.Triggered() {
				// deletion fired while Next was in flight: its result is
				// superseded, not followed.
				logger.Debug("deletion overrides in-flight transition", "object", key, "state", label)
				observer.OnExit(ctx, key.String(), label, OutcomeNext, nil)
				current = gate.DeletedState()
				continue
			}
			observer.OnExit(ctx, key.String(), label, OutcomeNext, nil)
			current = transition.next

		case kindComplete:
			if transition.err != nil {
				var zero S
				failedStatus := zero.Failed(transition.err.Error())
				if pubErr := publisher.PatchStatus(ctx, key, failedStatus.Patch()); pubErr != nil {
					logger.Warn("failed-status publish failed", "object", key, "err", pubErr)
				}
				logger.Info("machine complete with error", "object", key, "state", label, "err", transition.err)
				observer.OnExit(ctx, key.String(), label, OutcomeCompleteError, transition.err)
				return transition.err
			}
			logger.Info("machine complete", "object", key, "state", label)
			observer.OnExit(ctx, key.String(), label, OutcomeComplete, nil)
			return nil

		case kindFatal:
			logger.Error("machine ended fatally", "object", key, "state", label, "err", transition.err)
			observer.OnExit(ctx, key.String(), label, OutcomeFatal, transition.err)
			return transition.err
		}
	}
}
