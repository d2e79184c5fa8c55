package wiremux

import "github.com/wiremux/wiremux/internal/sync"

// Listener-set for one reserved event of one component. The set of
// reserved events is closed per component: each gets its own store with
// a concrete handler func type. T is a pointer type so that handles can
// be compared for removal.
type handlerStore[T comparable] struct {
	mu        sync.Mutex
	funcs     []T
	funcsOnce []T
}

func newHandlerStore[T comparable]() *handlerStore[T] {
	return new(handlerStore[T])
}

func (e *handlerStore[T]) on(handler T) {
	e.mu.Lock()
	e.funcs = append(e.funcs, handler)
	e.mu.Unlock()
}

func (e *handlerStore[T]) once(handler T) {
	e.mu.Lock()
	e.funcsOnce = append(e.funcsOnce, handler)
	e.mu.Unlock()
}

func (e *handlerStore[T]) off(handler ...T) {
	e.mu.Lock()
	defer e.mu.Unlock()

	remove := func(slice []T, s int) []T {
		return append(slice[:s], slice[s+1:]...)
	}

	for i := len(e.funcs) - 1; i >= 0; i-- {
		for _, h := range handler {
			if e.funcs[i] == h {
				e.funcs = remove(e.funcs, i)
				break
			}
		}
	}

	for i := len(e.funcsOnce) - 1; i >= 0; i-- {
		for _, h := range handler {
			if e.funcsOnce[i] == h {
				e.funcsOnce = remove(e.funcsOnce, i)
				break
			}
		}
	}
}

func (e *handlerStore[T]) offAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.funcs = nil
	e.funcsOnce = nil
}

func (e *handlerStore[T]) getAll() (handlers []T) {
	e.mu.Lock()
	defer e.mu.Unlock()

	handlers = make([]T, 0, len(e.funcs)+len(e.funcsOnce))
	handlers = append(handlers, e.funcs...)
	handlers = append(handlers, e.funcsOnce...)
	e.funcsOnce = nil
	return
}
