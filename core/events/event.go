package events

// Event represents a structured state change surfaced to subscribers.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (indexers, webhooks).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies Emitter while discarding every event. Engines default
// to it so event emission stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
