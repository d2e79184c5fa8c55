package wiremux

import "github.com/wiremux/wiremux/internal/sync"

// AckFunc is an acknowledgement callback. As the trailing argument of
// Emit it receives the values the peer answers with; appended to an
// inbound event's arguments it sends the answer back. Either way it
// fires at most once.
type AckFunc func(args ...any)

type ackHandler struct {
	f    AckFunc
	once sync.Once
}

func newAckHandler(f AckFunc) *ackHandler {
	return &ackHandler{f: f}
}

func (h *ackHandler) Call(args ...any) {
	h.once.Do(func() {
		h.f(args...)
	})
}
