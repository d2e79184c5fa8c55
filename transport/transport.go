package transport

import "net/http"

// Callbacks are handed to the transport when it is opened.
// The transport invokes them from a single goroutine, in frame
// arrival order.
type Callbacks struct {
	OnData func(data []byte)

	// OnError reports a fatal transport failure. The connection above
	// is terminated in response.
	OnError func(err error)

	OnClose func(reason string, err error)
}

type WriteOptions struct {
	// Frame is a raw binary attachment rather than a header frame.
	Binary bool

	// Best-effort delivery. The transport may drop the frame
	// instead of blocking on a congested peer.
	Volatile bool

	Compress bool
}

// Transport delivers ordered byte frames between the two peers.
// Implementations own framing, handshake and liveness; this layer only
// sees frames and close events.
type Transport interface {
	ID() string
	Request() *http.Request

	// Open registers the callbacks and starts delivering inbound frames.
	// Must be called exactly once.
	Open(callbacks *Callbacks)

	Write(frame []byte, opts *WriteOptions) error
	Close()
}
