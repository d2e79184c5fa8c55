package wiremux

import (
	"fmt"
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiremux/wiremux/internal/sync"
	"github.com/wiremux/wiremux/internal/utils"
	"github.com/wiremux/wiremux/parser"
)

func TestMiddlewareOrder(t *testing.T) {
	server := newTestServer(t, nil)

	var (
		mu    sync.Mutex
		trace []string
	)
	step := func(name string) {
		mu.Lock()
		trace = append(trace, name)
		mu.Unlock()
	}

	server.Use(func(socket *Socket, next func(err error)) {
		step("first")
		next(nil)
	})
	server.Use(func(socket *Socket, next func(err error)) {
		step("second")
		next(nil)
	})
	server.OnConnection(func(socket *Socket) {
		step("connection")
	})

	connectSocket(t, server, "/")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "connection"}, trace)
}

func TestMiddlewareAsyncNext(t *testing.T) {
	server := newTestServer(t, nil)

	server.Use(func(socket *Socket, next func(err error)) {
		// next may be deferred to another goroutine. Admission must
		// still complete.
		go func() {
			time.Sleep(20 * time.Millisecond)
			next(nil)
		}()
	})

	_, socket := connectSocket(t, server, "/")
	assert.True(t, socket.IsConnected())
}

func TestMiddlewareRejection(t *testing.T) {
	server := newTestServer(t, nil)

	server.Use(func(socket *Socket, next func(err error)) {
		next(fmt.Errorf("authentication error"))
	})
	server.OnConnection(func(socket *Socket) {
		t.Error("rejected socket must not reach connection handlers")
	})

	tr := newFakeTransport()
	server.NewConn(tr)
	tr.receive(mustEncode(t, connectPacket("/")))

	frames := tr.waitWritten(t, 1)
	packet := mustDecode(t, frames[0].data)
	assert.Equal(t, parser.PacketTypeError, packet.Type)
	assert.Equal(t, "/", packet.Namespace)
	require.Len(t, packet.Data, 1)
	assert.Equal(t, "authentication error", packet.Data[0])

	// Nothing was registered.
	assert.Empty(t, server.Of("/").Sockets())
}

func TestMiddlewareRejectionStopsChain(t *testing.T) {
	server := newTestServer(t, nil)

	server.Use(func(socket *Socket, next func(err error)) {
		next(fmt.Errorf("no entry"))
	})
	server.Use(func(socket *Socket, next func(err error)) {
		t.Error("chain must stop at the first rejection")
		next(nil)
	})

	tr := newFakeTransport()
	server.NewConn(tr)
	tr.receive(mustEncode(t, connectPacket("/")))
	tr.waitWritten(t, 1)
}

func TestMiddlewareConnectionClosedDuringAdmission(t *testing.T) {
	server := newTestServer(t, nil)

	tr := newFakeTransport()
	server.Use(func(socket *Socket, next func(err error)) {
		// The peer goes away while the chain is still running.
		tr.peerClose()
		next(nil)
	})
	server.OnConnection(func(socket *Socket) {
		t.Error("a closed connection must not be admitted")
	})

	server.NewConn(tr)
	tr.receive(mustEncode(t, connectPacket("/")))

	// Admission is abandoned without a reply: no connect packet, no
	// error packet, no registration.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, tr.written())
	assert.Empty(t, server.Of("/").Sockets())
}

func TestMiddlewareStructuredRejection(t *testing.T) {
	server := newTestServer(t, nil)

	server.Use(func(socket *Socket, next func(err error)) {
		next(&Error{
			Message: "not authorized",
			Data: map[string]any{
				"code":  401,
				"label": "token expired",
			},
		})
	})

	tr := newFakeTransport()
	server.NewConn(tr)
	tr.receive(mustEncode(t, connectPacket("/")))

	frames := tr.waitWritten(t, 1)
	packet := mustDecode(t, frames[0].data)
	require.Equal(t, parser.PacketTypeError, packet.Type)
	require.Len(t, packet.Data, 1)

	var payload struct {
		Code  int    `mapstructure:"code"`
		Label string `mapstructure:"label"`
	}
	require.NoError(t, mapstructure.Decode(packet.Data[0], &payload))
	assert.Equal(t, 401, payload.Code)
	assert.Equal(t, "token expired", payload.Label)
}

func TestMiddlewareReceivesHandshake(t *testing.T) {
	server := newTestServer(t, nil)

	tw := utils.NewTestWaiter(1)
	server.Use(func(socket *Socket, next func(err error)) {
		defer tw.Done()
		handshake := socket.Handshake()
		if assert.NotNil(t, handshake) {
			var auth struct {
				Token string `mapstructure:"token"`
			}
			if assert.NoError(t, mapstructure.Decode(handshake.Auth, &auth)) {
				assert.Equal(t, "s3cret", auth.Token)
			}
		}
		next(nil)
	})

	tr := newFakeTransport()
	server.NewConn(tr)
	tr.receive(mustEncode(t, &parser.Packet{
		Type: parser.PacketTypeConnect,
		Data: []any{map[string]any{"token": "s3cret"}},
	}))
	tw.WaitTimeout(t, utils.DefaultTestWaitTimeout)
}

func TestNamespaceIsolation(t *testing.T) {
	server := newTestServer(t, nil)
	server.Of("/chat")

	trChat, chatSocket := connectSocket(t, server, "/chat")
	trRoot, _ := connectSocket(t, server, "/")

	server.Of("/chat").Emit("update", "v1")

	// Only members of /chat hear the event. trChat already carries two
	// connect replies ("/" and "/chat").
	frames := trChat.waitWritten(t, 3)
	packet := mustDecode(t, frames[2].data)
	assert.Equal(t, "/chat", packet.Namespace)
	assert.Equal(t, []any{"update", "v1"}, packet.Data)
	assert.Equal(t, SocketID("/chat#"+trChat.ID()), chatSocket.ID())

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, trRoot.written(), 1)
}

func TestNamespaceRoomBroadcast(t *testing.T) {
	server := newTestServer(t, nil)
	tr1, s1 := connectSocket(t, server, "/")
	tr2, _ := connectSocket(t, server, "/")
	tr3, s3 := connectSocket(t, server, "/")

	require.NoError(t, s1.Join("game"))
	require.NoError(t, s3.Join("game"))

	server.Of("/").To("game").Emit("tick", float64(1))

	for _, tr := range []*fakeTransport{tr1, tr3} {
		frames := tr.waitWritten(t, 2)
		packet := mustDecode(t, frames[1].data)
		assert.Equal(t, []any{"tick", float64(1)}, packet.Data)
	}

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, tr2.written(), 1)
}

func TestNamespaceExceptBroadcast(t *testing.T) {
	server := newTestServer(t, nil)
	tr1, s1 := connectSocket(t, server, "/")
	tr2, _ := connectSocket(t, server, "/")

	require.NoError(t, s1.Join("muted"))

	server.Of("/").Except("muted").Emit("shout")

	frames := tr2.waitWritten(t, 2)
	packet := mustDecode(t, frames[1].data)
	name, _ := packet.EventName()
	assert.Equal(t, "shout", name)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, tr1.written(), 1)
}

func TestSocketBroadcastExcludesSender(t *testing.T) {
	server := newTestServer(t, nil)
	tr1, s1 := connectSocket(t, server, "/")
	tr2, _ := connectSocket(t, server, "/")

	s1.Broadcast().Emit("moved", "north")

	frames := tr2.waitWritten(t, 2)
	packet := mustDecode(t, frames[1].data)
	assert.Equal(t, []any{"moved", "north"}, packet.Data)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, tr1.written(), 1)
}

func TestBroadcastOperatorImmutable(t *testing.T) {
	server := newTestServer(t, nil)
	tr1, s1 := connectSocket(t, server, "/")
	tr2, s2 := connectSocket(t, server, "/")

	require.NoError(t, s1.Join("a"))
	require.NoError(t, s2.Join("b"))

	base := server.Of("/").To("a")
	widened := base.To("b")

	// The original operator is untouched by the derived one.
	base.Emit("ping")

	frames := tr1.waitWritten(t, 2)
	name, _ := mustDecode(t, frames[1].data).EventName()
	assert.Equal(t, "ping", name)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, tr2.written(), 1)

	widened.Emit("pong")
	tr2.waitWritten(t, 2)
	tr1.waitWritten(t, 3)
}

func TestAdapterSockets(t *testing.T) {
	server := newTestServer(t, nil)
	_, s1 := connectSocket(t, server, "/")
	_, s2 := connectSocket(t, server, "/")

	require.NoError(t, s1.Join("lobby"))
	require.NoError(t, s2.Join("lobby"))

	adapter := server.Of("/").Adapter()

	sids, err := adapter.Sockets(roomSet("lobby"))
	require.NoError(t, err)
	assert.Equal(t, 2, sids.Cardinality())
	assert.True(t, sids.Contains(s1.ID()))
	assert.True(t, sids.Contains(s2.ID()))

	// The implicit singleton room addresses exactly one socket.
	sids, err = adapter.Sockets(roomSet(Room(s1.ID())))
	require.NoError(t, err)
	assert.Equal(t, 1, sids.Cardinality())

	// No rooms given targets every socket of the namespace.
	sids, err = adapter.Sockets(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sids.Cardinality())
}
