// Package bus provides an internal event bus for component communication
package bus

import (
	"sync"
)

// EventType identifies different event types
type EventType string

// Event types for the avatar controller
const (
	// Mood events
	EventTypeMoodChanged EventType = "mood.changed"
	EventTypeBusyChanged EventType = "mood.busy_changed"

	// Model events
	EventTypeModelLoaded     EventType = "model.loaded"
	EventTypeModelLoadFailed EventType = "model.load_failed"
	EventTypeModelDiscarded  EventType = "model.discarded"
	EventTypeModelDisposed   EventType = "model.disposed"

	// Caption events
	EventTypeCaptionStarted  EventType = "caption.started"
	EventTypeCaptionRevealed EventType = "caption.revealed"
	EventTypeCaptionHidden   EventType = "caption.hidden"

	// Connection events
	EventTypeConnected    EventType = "connection.connected"
	EventTypeDisconnected EventType = "connection.disconnected"
	EventTypeError        EventType = "connection.error"
)

// AllEventTypes lists every event type the controller publishes.
var AllEventTypes = []EventType{
	EventTypeMoodChanged,
	EventTypeBusyChanged,
	EventTypeModelLoaded,
	EventTypeModelLoadFailed,
	EventTypeModelDiscarded,
	EventTypeModelDisposed,
	EventTypeCaptionStarted,
	EventTypeCaptionRevealed,
	EventTypeCaptionHidden,
	EventTypeConnected,
	EventTypeDisconnected,
	EventTypeError,
}

// Event represents a bus event
type Event struct {
	Type EventType      `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Handler is a function that handles events
type Handler func(Event)

// Publisher is the sending half of the bus.
type Publisher interface {
	Publish(event Event)
}

// EventBus is a simple pub/sub event bus
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	wg       sync.WaitGroup
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for an event type
func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeMultiple adds a handler for multiple event types
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) {
	for _, et := range eventTypes {
		b.Subscribe(et, handler)
	}
}

// Publish sends an event to all subscribed handlers
func (b *EventBus) Publish(event Event) {
	handlers := b.snapshot(event.Type)

	for _, handler := range handlers {
		// Call handlers in goroutines to avoid blocking
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			h(event)
		}(handler)
	}
}

// PublishSync sends an event and waits for all handlers to complete
func (b *EventBus) PublishSync(event Event) {
	handlers := b.snapshot(event.Type)

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(handler)
	}
	wg.Wait()
}

// Sync returns a Publisher that runs PublishSync, so subscribers see events
// in the order they were published.
func (b *EventBus) Sync() Publisher {
	return syncPublisher{b: b}
}

type syncPublisher struct {
	b *EventBus
}

func (p syncPublisher) Publish(event Event) {
	p.b.PublishSync(event)
}

// Wait blocks until every handler started by Publish has returned
func (b *EventBus) Wait() {
	b.wg.Wait()
}

func (b *EventBus) snapshot(eventType EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := make([]Handler, len(b.handlers[eventType]))
	copy(handlers, b.handlers[eventType])
	return handlers
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
}
