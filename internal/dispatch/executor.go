package dispatch

import (
	"context"
	log "log/slog"
	"time"

	"github.com/omotayoh/vRvoice/internal/actuator"
)

// DefaultTick is the executor's drain interval.
const DefaultTick = 50 * time.Millisecond

// Executor applies queued actions to the actuator from a single goroutine.
// Consecutive repeats of the same derived name are suppressed, so a stream
// of identical voice commands settles into one activation.
type Executor struct {
	queue    *ActionQueue
	act      actuator.Actuator
	tick     time.Duration
	qualify  bool
	lastName string
}

// ExecutorOption adjusts Executor construction.
type ExecutorOption func(*Executor)

// WithTick overrides the drain interval.
func WithTick(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.tick = d
		}
	}
}

// WithGroupQualifiedNames derives "{group}: {name}" instead of the bare
// name for pair activations, matching scene hosts that namespace variants
// by group.
func WithGroupQualifiedNames() ExecutorOption {
	return func(e *Executor) { e.qualify = true }
}

// NewExecutor builds an executor draining queue into act.
func NewExecutor(queue *ActionQueue, act actuator.Actuator, opts ...ExecutorOption) *Executor {
	e := &Executor{queue: queue, act: act, tick: DefaultTick}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run ticks on the calling goroutine until ctx is done. That goroutine is
// the only one ever to touch the actuator.
func (e *Executor) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Drain()
		}
	}
}

// Drain applies everything queued so far. One action's failure never stops
// the rest of the batch. Exported for tests and for hosts that drive ticks
// from their own event loop.
func (e *Executor) Drain() {
	for _, a := range e.queue.Drain() {
		e.apply(a)
	}
}

func (e *Executor) apply(a Action) {
	switch a.Kind {
	case Ping:
		return
	case ActivatePair, ActivateByName:
	default:
		log.Warn("Dropped action of unknown kind", "kind", int(a.Kind))
		return
	}

	name := e.deriveName(a)
	if name == e.lastName {
		log.Debug("Suppressed repeat activation", "name", name)
		return
	}
	if err := e.act.Activate(name); err != nil {
		// The failed name is not remembered, so the next identical
		// command retries instead of being suppressed.
		log.Error("Activation failed", "name", name, "err", err)
		return
	}
	e.lastName = name
	log.Info("Activation applied", "action", a.Kind.String(), "name", name)
}

func (e *Executor) deriveName(a Action) string {
	if a.Kind == ActivatePair && e.qualify && a.Group != "" {
		return a.Group + ": " + a.Name
	}
	return a.Name
}
