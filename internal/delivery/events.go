package delivery

import (
	"sync"

	"github.com/house-of-holmes/social-alerts/internal/models"
)

// EventKind identifies what a delivery event describes.
type EventKind string

const (
	// EventConnection reports live-channel state changes; Status carries
	// the new state.
	EventConnection EventKind = "connection"

	// EventNewAlert carries one alert, pushed or synthesized.
	EventNewAlert EventKind = "new-alert"

	EventPollSuccess    EventKind = "poll-success"
	EventPollError      EventKind = "poll-error"
	EventPollingStarted EventKind = "polling-started"
	EventPollingStopped EventKind = "polling-stopped"

	// EventPollingFailed is terminal: polling gave up after repeated
	// failures and will not resume without a reset.
	EventPollingFailed EventKind = "polling-failed"
)

// Event is delivered to registered listeners.
type Event struct {
	Kind   EventKind
	Alert  *models.Alert
	Status string
	Err    error
}

// Token identifies one listener registration for removal.
type Token struct {
	kind EventKind
	id   int
}

// emitter is a minimal typed listener registry. Removal with a stale or
// already-removed token is a no-op.
type emitter struct {
	mu        sync.Mutex
	nextID    int
	listeners map[EventKind]map[int]func(Event)
}

func newEmitter() *emitter {
	return &emitter{listeners: make(map[EventKind]map[int]func(Event))}
}

func (e *emitter) on(kind EventKind, fn func(Event)) Token {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	if e.listeners[kind] == nil {
		e.listeners[kind] = make(map[int]func(Event))
	}
	e.listeners[kind][e.nextID] = fn
	return Token{kind: kind, id: e.nextID}
}

func (e *emitter) off(token Token) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners[token.kind], token.id)
}

func (e *emitter) emit(event Event) {
	e.mu.Lock()
	fns := make([]func(Event), 0, len(e.listeners[event.Kind]))
	for _, fn := range e.listeners[event.Kind] {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}
