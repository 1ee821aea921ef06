package common

import "errors"

var (
	// ErrModulePaused is returned by mutating entry points while the
	// administrator circuit breaker is engaged.
	ErrModulePaused = errors.New("module paused")

	// ErrReentrantCall is returned when an external collaborator attempts to
	// re-enter a mutating entry point while another one is executing.
	ErrReentrantCall = errors.New("reentrant call rejected")
)

// PauseView exposes the circuit-breaker state consulted before any state
// change.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the named module is paused. A nil view or empty
// module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// CallGuard is a single-flight execution guard scoped to a component's whole
// external-facing call. It is not safe for concurrent use on its own: callers
// are serialized by the node's writer lock, and the guard exists to catch a
// token collaborator calling back into the component on the same goroutine
// before the outer operation has committed.
type CallGuard struct {
	busy bool
}

// Enter marks the guard busy, rejecting the call when another mutating entry
// point is already executing.
func (g *CallGuard) Enter() error {
	if g == nil {
		return nil
	}
	if g.busy {
		return ErrReentrantCall
	}
	g.busy = true
	return nil
}

// Exit clears the guard. It must run on every exit path, including errors.
func (g *CallGuard) Exit() {
	if g == nil {
		return
	}
	g.busy = false
}
