package game

import (
	"log/slog"
	"time"
)

// Event is a named occurrence flowing through the [EventBus] with an
// arbitrary payload.
type Event struct {
	// Name identifies the event kind (e.g. "collision", "weather.changed").
	Name string

	// Payload carries event-specific data. May be nil.
	Payload map[string]any
}

// EventHandler consumes a single event. Handlers run on the world loop
// goroutine and must not block.
type EventHandler func(Event)

// scheduledEvent is an event queued for delivery at a future instant.
type scheduledEvent struct {
	due   time.Time
	event Event
}

// EventBus dispatches events to registered handlers and supports delayed
// delivery. It is owned by the engine and used only from the world loop
// goroutine.
//
// A panicking handler is recovered and logged so one faulty subscriber
// cannot take down the simulation.
type EventBus struct {
	handlers  map[string][]EventHandler
	scheduled []scheduledEvent
	now       func() time.Time
	log       *slog.Logger
}

// NewEventBus returns an empty event bus using the wall clock.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[string][]EventHandler),
		now:      time.Now,
		log:      slog.With("system", "events"),
	}
}

// Subscribe registers handler for events with the given name. Multiple
// handlers per name are invoked in registration order.
func (b *EventBus) Subscribe(name string, handler EventHandler) {
	b.handlers[name] = append(b.handlers[name], handler)
}

// Trigger synchronously delivers the event to all handlers registered for
// its name.
func (b *EventBus) Trigger(event Event) {
	for _, handler := range b.handlers[event.Name] {
		b.deliver(handler, event)
	}
}

// Schedule queues the event for delivery after delay. Scheduled events are
// drained by [EventBus.Step] on subsequent ticks.
func (b *EventBus) Schedule(delay time.Duration, event Event) {
	b.scheduled = append(b.scheduled, scheduledEvent{
		due:   b.now().Add(delay),
		event: event,
	})
	b.log.Debug("event scheduled", "event", event.Name, "delay", delay)
}

// Step delivers all scheduled events whose due time has passed. Handlers
// may call [EventBus.Schedule] during delivery; such events are queued for
// a later step.
func (b *EventBus) Step() {
	if len(b.scheduled) == 0 {
		return
	}
	now := b.now()

	pending := b.scheduled
	b.scheduled = nil

	var remaining []scheduledEvent
	for _, se := range pending {
		if now.Before(se.due) {
			remaining = append(remaining, se)
			continue
		}
		b.Trigger(se.event)
	}
	// b.scheduled now holds anything scheduled by a handler above.
	b.scheduled = append(remaining, b.scheduled...)
}

// deliver invokes handler with panic recovery.
func (b *EventBus) deliver(handler EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", "event", event.Name, "panic", r)
		}
	}()
	handler(event)
}
