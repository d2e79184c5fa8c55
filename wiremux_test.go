package wiremux

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/require"

	"github.com/wiremux/wiremux/internal/sync"
	"github.com/wiremux/wiremux/internal/utils"
	"github.com/wiremux/wiremux/parser"
	jsonparser "github.com/wiremux/wiremux/parser/json"
	"github.com/wiremux/wiremux/transport"
)

var fakeTransportID int32

// fakeTransport is an in-process transport that records every written
// frame and lets tests feed inbound frames by hand.
type fakeTransport struct {
	id        string
	callbacks *transport.Callbacks

	mu     sync.Mutex
	frames []outFrame
	closed bool
}

func newFakeTransport() *fakeTransport {
	fakeTransportID++
	return &fakeTransport{
		id: "fake-" + strconv.Itoa(int(fakeTransportID)),
	}
}

func (t *fakeTransport) ID() string { return t.id }

func (t *fakeTransport) Request() *http.Request { return nil }

func (t *fakeTransport) Open(callbacks *transport.Callbacks) {
	t.mu.Lock()
	t.callbacks = callbacks
	t.mu.Unlock()
}

func (t *fakeTransport) Write(frame []byte, opts *transport.WriteOptions) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	o := transport.WriteOptions{}
	if opts != nil {
		o = *opts
	}
	t.frames = append(t.frames, outFrame{data: frame, opts: o})
	return nil
}

func (t *fakeTransport) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// receive feeds inbound frames, as if the peer had sent them.
func (t *fakeTransport) receive(frames ...[]byte) {
	t.mu.Lock()
	callbacks := t.callbacks
	t.mu.Unlock()
	for _, frame := range frames {
		callbacks.OnData(frame)
	}
}

// peerError simulates a fatal failure reported by the transport.
func (t *fakeTransport) peerError(err error) {
	t.mu.Lock()
	callbacks := t.callbacks
	t.mu.Unlock()
	callbacks.OnError(err)
}

// peerClose simulates the peer going away.
func (t *fakeTransport) peerClose() {
	t.mu.Lock()
	callbacks := t.callbacks
	t.mu.Unlock()
	callbacks.OnClose("transport close", nil)
}

func (t *fakeTransport) written() []outFrame {
	t.mu.Lock()
	defer t.mu.Unlock()
	frames := make([]outFrame, len(t.frames))
	copy(frames, t.frames)
	return frames
}

// waitWritten blocks until at least n frames have been written.
func (t *fakeTransport) waitWritten(test *testing.T, n int) []outFrame {
	require.Eventually(test, func() bool {
		return len(t.written()) >= n
	}, utils.DefaultTestWaitTimeout, 2*time.Millisecond)
	return t.written()
}

func mustEncode(t *testing.T, packet *parser.Packet) []byte {
	t.Helper()
	frames, err := jsonparser.NewCreator(0)().Encode(packet)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	return frames[0]
}

func mustDecode(t *testing.T, frame []byte) *parser.Packet {
	t.Helper()
	var decoded *parser.Packet
	err := jsonparser.NewCreator(0)().Add(frame, func(packet *parser.Packet) {
		decoded = packet
	})
	require.NoError(t, err)
	require.NotNil(t, decoded)
	return decoded
}

func roomSet(rooms ...Room) mapset.Set[Room] {
	s := mapset.NewSet[Room]()
	for _, r := range rooms {
		s.Add(r)
	}
	return s
}

func connectPacket(namespace string) *parser.Packet {
	return &parser.Packet{
		Type:      parser.PacketTypeConnect,
		Namespace: namespace,
	}
}

func newTestServer(t *testing.T, config *ServerConfig) *Server {
	t.Helper()
	server := NewServer(config)
	t.Cleanup(server.Close)
	return server
}

// connectSocket opens a fake transport against the server and completes
// the connect handshake for the given namespace.
func connectSocket(t *testing.T, server *Server, namespace string) (*fakeTransport, *Socket) {
	t.Helper()

	tw := utils.NewTestWaiter(1)
	var (
		socketMu sync.Mutex
		socket   *Socket
	)
	server.Of(namespace).OnceConnection(func(s *Socket) {
		socketMu.Lock()
		socket = s
		socketMu.Unlock()
		tw.Done()
	})

	tr := newFakeTransport()
	server.NewConn(tr)
	tr.receive(mustEncode(t, connectPacket(namespace)))
	if namespace != "/" {
		// Secondary namespaces are buffered until "/" is admitted.
		tr.receive(mustEncode(t, connectPacket("/")))
	}

	tw.WaitTimeout(t, utils.DefaultTestWaitTimeout)

	socketMu.Lock()
	defer socketMu.Unlock()
	require.NotNil(t, socket)
	return tr, socket
}
