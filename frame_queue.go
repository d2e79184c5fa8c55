package wiremux

import (
	"github.com/wiremux/wiremux/internal/sync"
	"github.com/wiremux/wiremux/transport"
)

type outFrame struct {
	data []byte
	opts transport.WriteOptions
}

// Outbound frames of one connection. A single goroutine drains the
// queue, so frames reach the transport in the order they were added.
type frameQueue struct {
	frames []outFrame
	mu     sync.Mutex

	ready chan struct{}
	reset chan struct{}
}

func newFrameQueue() *frameQueue {
	return &frameQueue{
		ready: make(chan struct{}, 1),
		reset: make(chan struct{}, 1),
	}
}

// Poll blocks until at least one frame is queued. ok is false once the
// queue has been reset: the drain goroutine must exit.
func (q *frameQueue) Poll() (frames []outFrame, ok bool) {
	for {
		frames = q.Get()
		if len(frames) != 0 {
			return frames, true
		}

		select {
		case <-q.ready:
		case <-q.reset:
			return nil, false
		}
	}
}

func (q *frameQueue) Get() (frames []outFrame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	frames = q.frames
	q.frames = nil
	return
}

func (q *frameQueue) Add(frames ...outFrame) {
	q.mu.Lock()
	q.frames = append(q.frames, frames...)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *frameQueue) Reset() {
	q.mu.Lock()
	q.frames = nil
	q.mu.Unlock()
	select {
	case q.reset <- struct{}{}:
	default:
	}
}

func (q *frameQueue) pollAndSend(t transport.Transport) {
	for {
		frames, ok := q.Poll()
		if !ok {
			return
		}
		for i := range frames {
			err := t.Write(frames[i].data, &frames[i].opts)
			if err != nil {
				// The transport is gone. Its close event tears the
				// connection down; nothing to do here.
				return
			}
		}
	}
}
