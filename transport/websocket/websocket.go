// Package websocket implements the transport boundary over a WebSocket
// connection using nhooyr.io/websocket.
package websocket

import (
	"context"
	"net/http"

	"github.com/wiremux/wiremux/internal/sync"
	"github.com/wiremux/wiremux/transport"
	"nhooyr.io/websocket"
)

type AcceptOptions struct {
	// Passed through to nhooyr.io/websocket.
	Subprotocols         []string
	InsecureSkipVerify   bool
	OriginPatterns       []string
	CompressionThreshold int
}

type Transport struct {
	id      string
	request *http.Request
	conn    *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

var _ transport.Transport = (*Transport)(nil)

// Accept upgrades an HTTP request to a WebSocket and wraps it as a
// transport. The read pump does not start until Open is called.
func Accept(w http.ResponseWriter, r *http.Request, opts *AcceptOptions) (*Transport, error) {
	if opts == nil {
		opts = new(AcceptOptions)
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:         opts.Subprotocols,
		InsecureSkipVerify:   opts.InsecureSkipVerify,
		OriginPatterns:       opts.OriginPatterns,
		CompressionMode:      websocket.CompressionContextTakeover,
		CompressionThreshold: opts.CompressionThreshold,
	})
	if err != nil {
		return nil, err
	}

	id, err := transport.GenerateBase64ID(transport.Base64IDSize)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		id:      id,
		request: r,
		conn:    conn,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func (t *Transport) ID() string { return t.id }

func (t *Transport) Request() *http.Request { return t.request }

func (t *Transport) Open(callbacks *transport.Callbacks) {
	go t.readPump(callbacks)
}

func (t *Transport) readPump(callbacks *transport.Callbacks) {
	for {
		_, data, err := t.conn.Read(t.ctx)
		if err != nil {
			t.closeOnce.Do(func() {
				t.cancel()
				callbacks.OnClose("transport close", err)
			})
			return
		}
		callbacks.OnData(data)
	}
}

func (t *Transport) Write(frame []byte, opts *transport.WriteOptions) error {
	typ := websocket.MessageText
	if opts != nil && opts.Binary {
		typ = websocket.MessageBinary
	}
	// Compression is negotiated per connection; the per-write
	// Compress flag cannot be honored here.
	return t.conn.Write(t.ctx, typ, frame)
}

func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		t.cancel()
		t.conn.Close(websocket.StatusNormalClosure, "")
	})
}
