package wiremux

import (
	"time"

	"github.com/wiremux/wiremux/internal/sync"
	"github.com/wiremux/wiremux/parser"
	"github.com/wiremux/wiremux/transport"
)

// Conn represents one physical transport connection, demultiplexed into
// at most one socket per namespace.
type Conn struct {
	id        string
	transport transport.Transport
	server    *Server

	// Sockets owned by this connection, keyed by namespace path.
	sockets *connSocketStore

	// Connect requests for secondary namespaces that arrived before the
	// default namespace finished admitting this connection. Replayed in
	// arrival order once "/" is admitted.
	pending   []pendingConnect
	pendingMu sync.Mutex

	// This mutex protects the parser from concurrent Add calls and
	// keeps packet dispatch in frame arrival order.
	parserMu sync.Mutex
	parser   parser.Parser

	frames *frameQueue

	closed    bool
	closedMu  sync.RWMutex
	closeOnce sync.Once

	debug Debugger
}

type pendingConnect struct {
	namespace string
	auth      any
}

type connSocketStore struct {
	sockets map[string]*Socket
	mu      sync.Mutex
}

func newConnSocketStore() *connSocketStore {
	return &connSocketStore{
		sockets: make(map[string]*Socket),
	}
}

func (s *connSocketStore) Get(nsp string) (socket *Socket, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	socket, ok = s.sockets[nsp]
	return
}

func (s *connSocketStore) Has(nsp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sockets[nsp]
	return ok
}

func (s *connSocketStore) GetAll() (sockets []*Socket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sockets = make([]*Socket, 0, len(s.sockets))
	for _, socket := range s.sockets {
		sockets = append(sockets, socket)
	}
	return
}

func (s *connSocketStore) GetAndRemoveAll() (sockets []*Socket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sockets = make([]*Socket, 0, len(s.sockets))
	for _, socket := range s.sockets {
		sockets = append(sockets, socket)
	}
	s.sockets = make(map[string]*Socket)
	return
}

// SetIfAbsent reserves the socket's namespace slot. It fails when
// another socket already holds it, so two in-flight admissions for the
// same namespace cannot both register.
func (s *connSocketStore) SetIfAbsent(socket *Socket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	nsp := socket.nsp.Name()
	if _, ok := s.sockets[nsp]; ok {
		return false
	}
	s.sockets[nsp] = socket
	return true
}

func (s *connSocketStore) Remove(nsp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sockets, nsp)
}

func (s *connSocketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sockets)
}

func newConn(server *Server, t transport.Transport) *Conn {
	c := &Conn{
		id:        t.ID(),
		transport: t,
		server:    server,
		sockets:   newConnSocketStore(),
		parser:    server.parserCreator(),
		frames:    newFrameQueue(),
		debug:     server.debug.WithContext("[wiremux/conn] " + t.ID()),
	}
	return c
}

func (c *Conn) open() {
	go c.frames.pollAndSend(c.transport)

	c.transport.Open(&transport.Callbacks{
		OnData:  c.onData,
		OnError: c.onTransportError,
		OnClose: c.onTransportClose,
	})

	go func() {
		time.Sleep(c.server.connectTimeout)
		if c.sockets.Len() == 0 {
			c.debug.Log("no namespace joined within connect timeout")
			c.Close()
		}
	}()
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Transport() transport.Transport { return c.transport }

func (c *Conn) IsOpen() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return !c.closed
}

func (c *Conn) onData(data []byte) {
	// Decode under the lock, dispatch outside of it: a handler may
	// legitimately close this connection, and teardown needs the lock.
	// The transport delivers frames from a single goroutine, so dispatch
	// stays in arrival order.
	var packets []*parser.Packet
	c.parserMu.Lock()
	err := c.parser.Add(data, func(packet *parser.Packet) {
		packets = append(packets, packet)
	})
	c.parserMu.Unlock()

	if err != nil {
		c.onDecodeError(err)
		return
	}

	for _, packet := range packets {
		c.onPacket(packet)
	}
}

// onPacket routes one fully reconstructed packet. Connect requests go
// through admission; everything else goes to the socket registered for
// the packet's namespace, or is dropped if none exists.
func (c *Conn) onPacket(packet *parser.Packet) {
	if packet.Namespace == "" {
		packet.Namespace = "/"
	}

	if packet.Type == parser.PacketTypeConnect {
		var auth any
		if len(packet.Data) != 0 {
			auth = packet.Data[0]
		}
		c.connectTo(packet.Namespace, auth)
		return
	}

	socket, ok := c.sockets.Get(packet.Namespace)
	if !ok {
		// A packet for a namespace the peer never joined (or already
		// left). Dependent logic relies on this being silent.
		c.debug.Log("no socket for namespace, dropping packet", packet.Namespace)
		return
	}
	socket.onPacket(packet)
}

func (c *Conn) connectTo(namespace string, auth any) {
	// Bootstrap race: a secondary namespace can be requested before the
	// handshake for "/" completes. Buffer it and replay once the default
	// namespace has admitted this connection.
	if namespace != "/" && !c.sockets.Has("/") {
		c.pendingMu.Lock()
		c.pending = append(c.pending, pendingConnect{namespace: namespace, auth: auth})
		c.pendingMu.Unlock()
		c.debug.Log("buffering connect until the default namespace is ready", namespace)
		return
	}

	if c.sockets.Has(namespace) {
		c.debug.Log("already connected to namespace, ignoring connect", namespace)
		return
	}

	nsp, ok := c.server.namespaces.Get(namespace)
	if !ok {
		c.debug.Log("connect to unknown namespace", namespace)
		c.connectError(&Error{Message: "invalid namespace: " + namespace}, namespace)
		return
	}

	nsp.add(c, auth)
}

// acceptSocket indexes a freshly admitted socket. It fails when the
// connection closed while admission was still in flight, or when a
// concurrent admission already claimed the namespace: duplicate connect
// requests can pass the connectTo guard before the first one registers.
func (c *Conn) acceptSocket(socket *Socket) (ok bool) {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	if c.closed {
		return false
	}
	return c.sockets.SetIfAbsent(socket)
}

// socketConnected replays buffered secondary-namespace connects once the
// default namespace has finished admitting this connection.
func (c *Conn) socketConnected(socket *Socket) {
	if socket.nsp.Name() != "/" {
		return
	}

	c.pendingMu.Lock()
	pending := c.pending
	c.pending = nil
	c.pendingMu.Unlock()

	for _, p := range pending {
		c.connectTo(p.namespace, p.auth)
	}
}

func (c *Conn) removeSocket(socket *Socket) {
	c.sockets.Remove(socket.nsp.Name())
}

func (c *Conn) connectError(err error, namespace string) {
	payload := any(err.Error())
	e, ok := err.(*Error)
	if ok && e.Data != nil {
		payload = e.Data
	}

	packet := &parser.Packet{
		Type:      parser.PacketTypeError,
		Namespace: namespace,
		Data:      []any{payload},
	}
	c.sendPacket(packet, nil)
}

func (c *Conn) encode(packet *parser.Packet) ([][]byte, error) {
	return c.parser.Encode(packet)
}

func (c *Conn) sendPacket(packet *parser.Packet, opts *transport.WriteOptions) {
	frames, err := c.parser.Encode(packet)
	if err != nil {
		c.onError(wrapInternalError(err))
		return
	}
	c.sendFrames(frames, opts)
}

// sendFrames queues one header frame plus its binary attachments.
func (c *Conn) sendFrames(frames [][]byte, opts *transport.WriteOptions) {
	if len(frames) == 0 {
		return
	}
	if opts == nil {
		opts = new(transport.WriteOptions)
	}

	out := make([]outFrame, len(frames))
	for i, frame := range frames {
		o := *opts
		o.Binary = i > 0
		out[i] = outFrame{data: frame, opts: o}
	}
	c.frames.Add(out...)
}

// onError fans a connection-level error out to every owned socket.
func (c *Conn) onError(err error) {
	for _, socket := range c.sockets.GetAll() {
		socket.onError(err)
	}
}

// A malformed frame is a transport-level error: every owned socket hears
// about it, then the connection is torn down.
func (c *Conn) onDecodeError(err error) {
	c.debug.Log("decode error", err)
	c.onError(wrapInternalError(err))
	c.transport.Close()
	c.teardown(ReasonClientError)
}

// A transport failure is fatal for the whole connection: after the
// sockets have heard about it, the transport is terminated and the
// connection torn down.
func (c *Conn) onTransportError(err error) {
	c.debug.Log("transport error", err)
	c.onError(err)
	c.transport.Close()
	c.teardown(ReasonTransportClose)
}

func (c *Conn) onTransportClose(reason string, err error) {
	c.teardown(reason)
}

func (c *Conn) teardown(reason string) {
	c.closeOnce.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()

		c.pendingMu.Lock()
		c.pending = nil
		c.pendingMu.Unlock()

		for _, socket := range c.sockets.GetAndRemoveAll() {
			socket.onClose(reason)
		}

		c.parserMu.Lock()
		c.parser.Reset()
		c.parserMu.Unlock()

		c.frames.Reset()
		c.server.conns.Remove(c.id)
		c.debug.Log("closed", reason)
	})
}

// DisconnectAll disconnects every socket of this connection without
// closing the transport.
func (c *Conn) DisconnectAll() {
	for _, socket := range c.sockets.GetAndRemoveAll() {
		socket.Disconnect(false)
	}
}

// Close terminates the transport and tears the connection down with
// reason "forced server close".
func (c *Conn) Close() {
	c.transport.Close()
	c.frames.Reset()
	c.teardown(ReasonForcedServerClose)
}
