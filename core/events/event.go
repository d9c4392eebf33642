package events

import (
	"sync"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
)

// Event represents a structured state change emitted by a module.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. audit, websocket).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Canonical extracts the canonical payload carried by an event, if any.
func Canonical(evt Event) (*types.Event, bool) {
	if evt == nil {
		return nil, false
	}
	if typed, ok := evt.(interface{ Event() *types.Event }); ok {
		payload := typed.Event()
		return payload, payload != nil
	}
	return nil, false
}

// Buffer holds events until the enclosing operation commits.
type Buffer struct {
	events []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event {
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int { return len(b.events) }

// FlushTo forwards every buffered event to dst and empties the buffer.
func (b *Buffer) FlushTo(dst Emitter) {
	if dst != nil {
		for _, evt := range b.events {
			dst.Emit(evt)
		}
	}
	b.events = nil
}

// Reset drops all buffered events.
func (b *Buffer) Reset() { b.events = nil }

// Fanout delivers each event to every registered emitter. Emitters may be
// added while events are flowing.
type Fanout struct {
	mu       sync.RWMutex
	emitters []Emitter
}

// NewFanout constructs a fanout over the supplied emitters.
func NewFanout(emitters ...Emitter) *Fanout {
	f := &Fanout{}
	for _, e := range emitters {
		f.Add(e)
	}
	return f
}

// Add registers an emitter. Nil emitters are ignored.
func (f *Fanout) Add(e Emitter) {
	if e == nil {
		return
	}
	f.mu.Lock()
	f.emitters = append(f.emitters, e)
	f.mu.Unlock()
}

// Emit implements the Emitter interface.
func (f *Fanout) Emit(evt Event) {
	f.mu.RLock()
	targets := f.emitters
	f.mu.RUnlock()
	for _, e := range targets {
		e.Emit(evt)
	}
}
