// Package actuator abstracts the scene host that variant activations are
// applied to. The dispatch executor is the only caller.
package actuator

import (
	log "log/slog"
)

// Actuator applies one named activation to the scene host. Implementations
// are invoked from a single goroutine and need not be concurrency-safe.
type Actuator interface {
	Activate(name string) error
}

// Func adapts a plain function to the Actuator interface.
type Func func(name string) error

// Activate implements Actuator.
func (f Func) Activate(name string) error { return f(name) }

// Logger is an Actuator that only records activations. It stands in when no
// scene host is attached, e.g. dry runs and wiring checks.
type Logger struct{}

// Activate implements Actuator.
func (Logger) Activate(name string) error {
	log.Info("Variant activated", "name", name)
	return nil
}
