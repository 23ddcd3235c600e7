package rpc

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// Handler receives one event payload.
type Handler func(payload any)

// Subscription is the removal token for one registered handler.
type Subscription struct {
	emitter *Emitter
	event   string
	handler Handler
	once    bool
	fired   bool
	removed bool
}

// Event returns the event name this subscription listens on.
func (s *Subscription) Event() string {
	return s.event
}

// Emitter is an ordered per-event listener set. Publishing rides on an
// EventBus topic per event name; the emitter keeps its own ordered handler
// list so removal and once semantics are exact. One fanout callback stays
// subscribed per topic for the emitter's lifetime: EventBus invokes handlers
// under its own lock, so topic membership is never changed from inside a
// dispatch.
type Emitter struct {
	mu        sync.Mutex
	bus       evbus.Bus
	listeners map[string][]*Subscription
	topics    map[string]struct{}

	// Invoked when an event gains its first listener or loses its last one.
	// Used for driver-side event subscription updates.
	OnListenerChange func(event string, hasListeners bool)
}

func NewEmitter() *Emitter {
	return &Emitter{
		bus:       evbus.New(),
		listeners: make(map[string][]*Subscription),
		topics:    make(map[string]struct{}),
	}
}

// On registers h for event; handlers fire in registration order.
func (e *Emitter) On(event string, h Handler) *Subscription {
	return e.subscribe(event, h, false)
}

// Once registers h for a single firing; the handler self-removes afterwards.
func (e *Emitter) Once(event string, h Handler) *Subscription {
	return e.subscribe(event, h, true)
}

func (e *Emitter) subscribe(event string, h Handler, once bool) *Subscription {
	sub := &Subscription{emitter: e, event: event, handler: h, once: once}

	e.mu.Lock()
	e.listeners[event] = append(e.listeners[event], sub)
	first := len(e.listeners[event]) == 1
	if _, ok := e.topics[event]; !ok {
		e.topics[event] = struct{}{}
		_ = e.bus.Subscribe(event, e.fanout(event))
	}
	change := e.OnListenerChange
	e.mu.Unlock()

	if first && change != nil {
		change(event, true)
	}
	return sub
}

// RemoveListener unregisters sub; removing twice is a no-op.
func (e *Emitter) RemoveListener(sub *Subscription) {
	if sub == nil || sub.emitter != e {
		return
	}
	e.mu.Lock()
	last := e.removeLocked(sub)
	change := e.OnListenerChange
	e.mu.Unlock()

	if last && change != nil {
		change(sub.event, false)
	}
}

// removeLocked drops sub from its event list and reports whether the event
// lost its last listener.
func (e *Emitter) removeLocked(sub *Subscription) bool {
	if sub.removed {
		return false
	}
	sub.removed = true
	subs := e.listeners[sub.event]
	for i, s := range subs {
		if s == sub {
			e.listeners[sub.event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(e.listeners[sub.event]) > 0 {
		return false
	}
	delete(e.listeners, sub.event)
	return true
}

// Emit delivers payload to every listener of event, in order.
func (e *Emitter) Emit(event string, payload any) {
	e.bus.Publish(event, payload)
}

func (e *Emitter) fanout(event string) func(any) {
	return func(payload any) {
		e.mu.Lock()
		snapshot := make([]*Subscription, 0, len(e.listeners[event]))
		var lastRemoved bool
		for _, sub := range e.listeners[event] {
			if sub.once && sub.fired {
				continue
			}
			sub.fired = true
			snapshot = append(snapshot, sub)
			if sub.once {
				lastRemoved = e.removeLocked(sub) || lastRemoved
			}
		}
		change := e.OnListenerChange
		e.mu.Unlock()

		for _, sub := range snapshot {
			sub.handler(payload)
		}
		if lastRemoved && change != nil {
			change(event, false)
		}
	}
}

// ListenerCount reports how many handlers are registered for event.
func (e *Emitter) ListenerCount(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[event])
}

// HasListeners reports whether any handler is registered for event.
func (e *Emitter) HasListeners(event string) bool {
	return e.ListenerCount(event) > 0
}
