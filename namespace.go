package wiremux

import (
	"sync/atomic"

	"github.com/wiremux/wiremux/internal/sync"
	"github.com/wiremux/wiremux/transport"
)

type Namespace struct {
	name    string
	server  *Server
	sockets *NamespaceSocketStore

	adapter   Adapter
	adapterMu sync.RWMutex

	// Ack IDs are allocated from this strictly increasing counter,
	// shared by every socket of the namespace.
	ackID atomic.Uint64

	middlewareFuncs   []MiddlewareFunc
	middlewareFuncsMu sync.RWMutex

	connectHandlers    *handlerStore[*NamespaceConnectionFunc]
	connectionHandlers *handlerStore[*NamespaceConnectionFunc]

	debug Debugger
}

type NamespaceSocketStore struct {
	sockets map[SocketID]*Socket
	mu      sync.Mutex
}

func newNamespaceSocketStore() *NamespaceSocketStore {
	return &NamespaceSocketStore{
		sockets: make(map[SocketID]*Socket),
	}
}

func (s *NamespaceSocketStore) Get(sid SocketID) (socket *Socket, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	socket, ok = s.sockets[sid]
	return
}

func (s *NamespaceSocketStore) GetAll() []*Socket {
	s.mu.Lock()
	defer s.mu.Unlock()

	sockets := make([]*Socket, 0, len(s.sockets))
	for _, socket := range s.sockets {
		sockets = append(sockets, socket)
	}
	return sockets
}

// SendFrames writes encoded frames to a specific socket's connection.
func (s *NamespaceSocketStore) SendFrames(sid SocketID, frames [][]byte, opts *transport.WriteOptions) (ok bool) {
	socket, ok := s.Get(sid)
	if !ok {
		return false
	}
	socket.conn.sendFrames(frames, opts)
	return true
}

func (s *NamespaceSocketStore) Set(socket *Socket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets[socket.ID()] = socket
}

func (s *NamespaceSocketStore) Remove(sid SocketID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sockets, sid)
}

func newNamespace(name string, server *Server, adapterCreator AdapterCreator) *Namespace {
	nsp := &Namespace{
		name:               name,
		server:             server,
		sockets:            newNamespaceSocketStore(),
		connectHandlers:    newHandlerStore[*NamespaceConnectionFunc](),
		connectionHandlers: newHandlerStore[*NamespaceConnectionFunc](),
		debug:              server.debug.WithContext("[wiremux/namespace] " + name),
	}
	nsp.adapter = adapterCreator(nsp)
	return nsp
}

func (n *Namespace) Name() string {
	return n.name
}

func (n *Namespace) Adapter() Adapter {
	n.adapterMu.RLock()
	defer n.adapterMu.RUnlock()
	return n.adapter
}

func (n *Namespace) SocketStore() *NamespaceSocketStore {
	return n.sockets
}

func (n *Namespace) Sockets() []*Socket {
	return n.sockets.GetAll()
}

func (n *Namespace) nextAckID() uint64 {
	return n.ackID.Add(1)
}

// setAdapter replaces the adapter wholesale and re-indexes every
// currently admitted socket into the new one. The socket values
// themselves are not touched.
func (n *Namespace) setAdapter(creator AdapterCreator) {
	adapter := creator(n)

	for _, socket := range n.sockets.GetAll() {
		rooms := socket.Rooms().ToSlice()
		err := adapter.Add(socket.ID(), append(rooms, Room(socket.ID()))...)
		if err != nil {
			n.debug.Log("adapter swap: re-index failed", socket.ID(), err)
		}
	}

	n.adapterMu.Lock()
	old := n.adapter
	n.adapter = adapter
	n.adapterMu.Unlock()

	old.Close()
}

// add runs the candidate socket of a connection through the middleware
// chain. Admission completes asynchronously: registration only happens
// if the connection is still open once the chain has finished.
func (n *Namespace) add(c *Conn, auth any) {
	socket := newSocket(n, c, auth)

	n.runMiddlewares(socket, func(err error) {
		if err != nil {
			n.debug.Log("admission rejected", err)
			c.connectError(err, n.name)
			return
		}

		// The chain is asynchronous and the connection may have closed
		// meanwhile. Admission is silently abandoned in that case.
		if !c.IsOpen() {
			n.debug.Log("connection closed during admission", c.ID())
			return
		}

		// Registration is deferred to a fresh scheduling tick so that
		// packets already queued behind the connect are dispatched after
		// the connection handlers have run.
		go n.admit(socket)
	})
}

func (n *Namespace) admit(socket *Socket) {
	if !socket.conn.acceptSocket(socket) {
		return
	}
	n.sockets.Set(socket)

	err := socket.onConnect()
	if err != nil {
		n.sockets.Remove(socket.ID())
		socket.conn.removeSocket(socket)
		socket.onError(err)
		return
	}

	socket.conn.socketConnected(socket)

	for _, handler := range n.connectHandlers.getAll() {
		(*handler)(socket)
	}
	for _, handler := range n.connectionHandlers.getAll() {
		(*handler)(socket)
	}
}

// remove deregisters the socket. Removing a socket that is not
// registered is a no-op.
func (n *Namespace) remove(socket *Socket) {
	n.sockets.Remove(socket.ID())
}

func (n *Namespace) To(room ...Room) *BroadcastOperator {
	return n.newBroadcastOperator().To(room...)
}

// Alias of To(...)
func (n *Namespace) In(room ...Room) *BroadcastOperator {
	return n.To(room...)
}

func (n *Namespace) Except(room ...Room) *BroadcastOperator {
	return n.newBroadcastOperator().Except(room...)
}

func (n *Namespace) Local() *BroadcastOperator {
	return n.newBroadcastOperator().Local()
}

// Emit broadcasts to every socket of the namespace through the adapter.
// Like any broadcast, it cannot take an ack callback.
func (n *Namespace) Emit(eventName string, v ...any) {
	n.newBroadcastOperator().Emit(eventName, v...)
}

// Send emits a "message" event to every socket of the namespace.
func (n *Namespace) Send(v ...any) {
	n.newBroadcastOperator().Send(v...)
}

func (n *Namespace) newBroadcastOperator() *BroadcastOperator {
	return newBroadcastOperator(n.name, n.Adapter())
}
