package wiremux

import "github.com/wiremux/wiremux/internal/sync"

// EventHandlerFunc handles one application event. When the peer expects
// an acknowledgement, an AckFunc is appended as the last argument.
type EventHandlerFunc func(args ...any)

// Listener table for application events, keyed by event name. Handles
// returned at registration identify handlers for removal.
type eventHandlerStore struct {
	mu         sync.Mutex
	events     map[string][]*EventHandlerFunc
	eventsOnce map[string][]*EventHandlerFunc
}

func newEventHandlerStore() *eventHandlerStore {
	return &eventHandlerStore{
		events:     make(map[string][]*EventHandlerFunc),
		eventsOnce: make(map[string][]*EventHandlerFunc),
	}
}

func (e *eventHandlerStore) on(eventName string, handler *EventHandlerFunc) {
	e.mu.Lock()
	e.events[eventName] = append(e.events[eventName], handler)
	e.mu.Unlock()
}

func (e *eventHandlerStore) once(eventName string, handler *EventHandlerFunc) {
	e.mu.Lock()
	e.eventsOnce[eventName] = append(e.eventsOnce[eventName], handler)
	e.mu.Unlock()
}

func (e *eventHandlerStore) off(eventName string, handler ...*EventHandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(handler) == 0 {
		delete(e.events, eventName)
		delete(e.eventsOnce, eventName)
		return
	}

	remove := func(slice []*EventHandlerFunc, s int) []*EventHandlerFunc {
		return append(slice[:s], slice[s+1:]...)
	}

	handlers, ok := e.events[eventName]
	if ok {
		for i := len(handlers) - 1; i >= 0; i-- {
			for _, h := range handler {
				if handlers[i] == h {
					handlers = remove(handlers, i)
					break
				}
			}
		}
		e.events[eventName] = handlers
	}

	handlers, ok = e.eventsOnce[eventName]
	if ok {
		for i := len(handlers) - 1; i >= 0; i-- {
			for _, h := range handler {
				if handlers[i] == h {
					handlers = remove(handlers, i)
					break
				}
			}
		}
		e.eventsOnce[eventName] = handlers
	}
}

func (e *eventHandlerStore) offAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for k := range e.events {
		delete(e.events, k)
	}

	for k := range e.eventsOnce {
		delete(e.eventsOnce, k)
	}
}

func (e *eventHandlerStore) getAll(eventName string) (handlers []*EventHandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.events[eventName]
	hOnce := e.eventsOnce[eventName]

	delete(e.eventsOnce, eventName)

	handlers = make([]*EventHandlerFunc, 0, len(h)+len(hOnce))
	handlers = append(handlers, h...)
	handlers = append(handlers, hOnce...)
	return
}
