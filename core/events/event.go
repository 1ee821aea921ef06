package events

// Event represents a structured state change emitted by a ledger module.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (RPC tail, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default for engines constructed without an emitter.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
