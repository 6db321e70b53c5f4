package bus

import (
	"log/slog"
	"sync"
	"time"
)

// Event is a lifecycle event for internal pub/sub, e.g. a gateway
// session becoming ready.
type Event struct {
	Type      string
	Source    string // originating gateway name
	Payload   map[string]any
	Timestamp time.Time
}

// EventHandler is a callback for events.
type EventHandler func(Event)

// EventBus is a small topic-based publish/subscribe system for
// lifecycle events. Handlers run synchronously and are isolated from
// each other's panics.
type EventBus struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewEventBus creates a new EventBus.
func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers: make(map[string][]EventHandler),
		logger:   logger,
	}
}

// On registers a handler for the given event type. Use "*" to listen to
// all events.
func (eb *EventBus) On(eventType string, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// Emit publishes an event to all registered handlers in order.
func (eb *EventBus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	handlers := make([]EventHandler, 0, len(eb.handlers[event.Type]))
	handlers = append(handlers, eb.handlers[event.Type]...)
	handlers = append(handlers, eb.handlers["*"]...)
	eb.mu.RUnlock()

	for _, h := range handlers {
		func(fn EventHandler) {
			defer func() {
				if r := recover(); r != nil {
					eb.logger.Error("event handler panic", "event", event.Type, "panic", r)
				}
			}()
			fn(event)
		}(h)
	}
}

// EmitAsync publishes an event without waiting for handlers.
func (eb *EventBus) EmitAsync(event Event) {
	go eb.Emit(event)
}

// Well-known event types.
const (
	// EventGatewayReady fires once a gateway session is established.
	// Payload: "identity" (string), "guilds" ([]string of joined guild IDs).
	EventGatewayReady = "gateway.ready"
)
