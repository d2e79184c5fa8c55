package wiremux

import (
	"fmt"
	"os"
	"reflect"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/wiremux/wiremux/internal/sync"
	"github.com/wiremux/wiremux/parser"
	"github.com/wiremux/wiremux/transport"
)

// Socket is one connection's endpoint within one namespace. Once a
// socket has disconnected it is never reactivated; a reconnecting peer
// always gets a new socket.
type Socket struct {
	id   SocketID
	nsp  *Namespace
	conn *Conn

	handshake *Handshake

	connected   bool
	connectedMu sync.RWMutex

	// Local membership cache. The adapter holds the authoritative
	// membership; this set only changes after the adapter has
	// confirmed a mutation.
	rooms mapset.Set[Room]

	acks   map[uint64]*ackHandler
	acksMu sync.Mutex

	eventHandlers         *eventHandlerStore
	errorHandlers         *handlerStore[*SocketErrorFunc]
	disconnectingHandlers *handlerStore[*SocketDisconnectingFunc]
	disconnectHandlers    *handlerStore[*SocketDisconnectFunc]

	closeOnce sync.Once

	debug Debugger
}

func newSocket(nsp *Namespace, c *Conn, auth any) *Socket {
	id := SocketID(c.ID())
	if nsp.Name() != "/" {
		id = SocketID(nsp.Name() + "#" + c.ID())
	}

	handshake := &Handshake{
		Time: time.Now(),
		Auth: auth,
	}
	if request := c.transport.Request(); request != nil {
		handshake.Query = request.URL.Query()
		handshake.Headers = request.Header
	}

	return &Socket{
		id:        id,
		nsp:       nsp,
		conn:      c,
		handshake: handshake,
		rooms:     mapset.NewSet[Room](),
		acks:      make(map[uint64]*ackHandler),

		eventHandlers:         newEventHandlerStore(),
		errorHandlers:         newHandlerStore[*SocketErrorFunc](),
		disconnectingHandlers: newHandlerStore[*SocketDisconnectingFunc](),
		disconnectHandlers:    newHandlerStore[*SocketDisconnectFunc](),

		debug: nsp.debug.WithContext("[wiremux/socket] " + string(id)),
	}
}

func (s *Socket) ID() SocketID { return s.id }

func (s *Socket) Namespace() *Namespace { return s.nsp }

func (s *Socket) Conn() *Conn { return s.conn }

func (s *Socket) Handshake() *Handshake { return s.handshake }

func (s *Socket) IsConnected() bool {
	s.connectedMu.RLock()
	defer s.connectedMu.RUnlock()
	return s.connected
}

// onConnect finishes admission: the socket joins its implicit singleton
// room and the connect packet is written back to the peer.
func (s *Socket) onConnect() error {
	err := s.nsp.Adapter().Add(s.id, Room(s.id))
	if err != nil {
		return wrapInternalError(err)
	}
	s.rooms.Add(Room(s.id))

	packet := &parser.Packet{
		Type:      parser.PacketTypeConnect,
		Namespace: s.nsp.Name(),
		Data:      []any{map[string]any{"sid": string(s.id)}},
	}

	frames, err := s.conn.encode(packet)
	if err != nil {
		return wrapInternalError(err)
	}
	s.conn.sendFrames(frames, nil)

	s.connectedMu.Lock()
	s.connected = true
	s.connectedMu.Unlock()
	return nil
}

func (s *Socket) onPacket(packet *parser.Packet) {
	switch packet.Type {
	case parser.PacketTypeEvent, parser.PacketTypeBinaryEvent:
		s.onEvent(packet)
	case parser.PacketTypeAck, parser.PacketTypeBinaryAck:
		s.onAck(packet)
	case parser.PacketTypeDisconnect:
		s.onClose(ReasonClientNamespaceDisconnect)
	case parser.PacketTypeError:
		var payload any
		if len(packet.Data) != 0 {
			payload = packet.Data[0]
		}
		s.onError(&Error{Message: fmt.Sprint(payload)})
	default:
		s.debug.Log("invalid packet type, dropping", packet.Type)
	}
}

func (s *Socket) onEvent(packet *parser.Packet) {
	eventName, ok := packet.EventName()
	if !ok {
		s.onError(wrapInternalError(fmt.Errorf("event packet carries no event name")))
		return
	}

	args := make([]any, 0, len(packet.Data))
	args = append(args, packet.Data[1:]...)

	// When the peer expects an acknowledgement, hand the listeners a
	// callback that answers with the same ID. It fires at most once no
	// matter how many listeners share it.
	if packet.ID != nil {
		args = append(args, s.ackReply(*packet.ID))
	}

	for _, handler := range s.eventHandlers.getAll(eventName) {
		(*handler)(args...)
	}
}

func (s *Socket) ackReply(id uint64) AckFunc {
	var once sync.Once
	return func(args ...any) {
		once.Do(func() {
			s.sendAckPacket(id, args)
		})
	}
}

func (s *Socket) onAck(packet *parser.Packet) {
	if packet.ID == nil {
		s.onError(wrapInternalError(fmt.Errorf("ack packet carries no ID")))
		return
	}

	s.acksMu.Lock()
	handler, ok := s.acks[*packet.ID]
	if ok {
		delete(s.acks, *packet.ID)
	}
	s.acksMu.Unlock()

	if !ok {
		// Late or duplicate ack. Not an error.
		s.debug.Log("ack with unknown ID, dropping", *packet.ID)
		return
	}

	handler.Call(packet.Data...)
}

func (s *Socket) registerAck(handler *ackHandler) (id uint64) {
	id = s.nsp.nextAckID()
	s.acksMu.Lock()
	if s.acks == nil {
		s.acks = make(map[uint64]*ackHandler)
	}
	s.acks[id] = handler
	s.acksMu.Unlock()
	return
}

// Emit sends an event to the peer. If the last argument is an
// AckFunc-shaped function it is stripped from the payload and invoked
// with the values of the matching ack packet.
func (s *Socket) Emit(eventName string, v ...any) {
	s.emit(BroadcastFlags{}, eventName, v...)
}

// Send emits a "message" event.
func (s *Socket) Send(v ...any) {
	s.emit(BroadcastFlags{}, "message", v...)
}

func (s *Socket) emit(flags BroadcastFlags, eventName string, v ...any) {
	if IsEventReserved(eventName) {
		panic("wiremux: Emit: attempted to emit a reserved event: `" + eventName + "`")
	}
	if !s.IsConnected() {
		return
	}

	packet := &parser.Packet{
		Namespace: s.nsp.Name(),
	}

	if len(v) > 0 {
		last := v[len(v)-1]
		rt := reflect.TypeOf(last)
		if rt != nil && rt.Kind() == reflect.Func {
			f, ok := ackFuncOf(last)
			if !ok {
				panic("wiremux: Emit: ack callback must be a func(args ...any)")
			}
			id := s.registerAck(newAckHandler(f))
			packet.ID = &id
			v = v[:len(v)-1]
		}
	}

	data := make([]any, 0, len(v)+1)
	data = append(data, eventName)
	data = append(data, v...)

	packet.Type = parser.PacketTypeEvent
	if parser.HasBinary(data) {
		packet.Type = parser.PacketTypeBinaryEvent
	}
	packet.Data = data

	s.conn.sendPacket(packet, &transport.WriteOptions{
		Volatile: flags.Volatile,
		Compress: flags.Compress,
	})
}

func ackFuncOf(v any) (AckFunc, bool) {
	switch f := v.(type) {
	case AckFunc:
		return f, true
	case func(args ...any):
		return f, true
	default:
		return nil, false
	}
}

func (s *Socket) sendAckPacket(id uint64, values []any) {
	ptype := parser.PacketTypeAck
	if parser.HasBinary(values) {
		ptype = parser.PacketTypeBinaryAck
	}

	packet := &parser.Packet{
		Type:      ptype,
		Namespace: s.nsp.Name(),
		ID:        &id,
		Data:      values,
	}
	s.conn.sendPacket(packet, nil)
}

func (s *Socket) sendControlPacket(ptype parser.PacketType) {
	packet := &parser.Packet{
		Type:      ptype,
		Namespace: s.nsp.Name(),
	}
	s.conn.sendPacket(packet, nil)
}

// Join adds the socket to the given rooms. Rooms already joined are
// skipped without touching the adapter; the local cache only changes
// after the adapter has confirmed the mutation.
func (s *Socket) Join(rooms ...Room) error {
	if !s.IsConnected() {
		return nil
	}

	toJoin := make([]Room, 0, len(rooms))
	for _, room := range rooms {
		if !s.rooms.Contains(room) {
			toJoin = append(toJoin, room)
		}
	}
	if len(toJoin) == 0 {
		return nil
	}

	err := s.nsp.Adapter().Add(s.id, toJoin...)
	if err != nil {
		return err
	}

	for _, room := range toJoin {
		s.rooms.Add(room)
	}
	return nil
}

// Leave removes the socket from a room. Leaving a room that was never
// joined succeeds without touching the adapter.
func (s *Socket) Leave(room Room) error {
	if !s.rooms.Contains(room) {
		return nil
	}

	err := s.nsp.Adapter().Delete(s.id, room)
	if err != nil {
		return err
	}

	s.rooms.Remove(room)
	return nil
}

// Rooms returns a snapshot of the rooms this socket has joined,
// including its implicit singleton room.
func (s *Socket) Rooms() mapset.Set[Room] {
	return s.rooms.Clone()
}

func (s *Socket) To(room ...Room) *BroadcastOperator {
	return s.newBroadcastOperator().To(room...)
}

// Alias of To(...)
func (s *Socket) In(room ...Room) *BroadcastOperator {
	return s.To(room...)
}

func (s *Socket) Except(room ...Room) *BroadcastOperator {
	return s.newBroadcastOperator().Except(room...)
}

// Broadcast targets every socket of the namespace but this one.
func (s *Socket) Broadcast() *BroadcastOperator {
	return s.newBroadcastOperator()
}

func (s *Socket) newBroadcastOperator() *BroadcastOperator {
	return newBroadcastOperator(s.nsp.Name(), s.nsp.Adapter()).Except(Room(s.id))
}

// Volatile returns a per-call builder whose emission may be dropped
// instead of blocking on a congested transport.
func (s *Socket) Volatile() EmitBuilder {
	return EmitBuilder{socket: s, flags: BroadcastFlags{Volatile: true}}
}

// Compress returns a per-call builder controlling frame compression.
func (s *Socket) Compress(compress bool) EmitBuilder {
	return EmitBuilder{socket: s, flags: BroadcastFlags{Compress: compress}}
}

// EmitBuilder carries per-call emit modifiers for a direct (non
// broadcast) emission. Values are copied on every modifier, so a builder
// never leaks state into a later call.
type EmitBuilder struct {
	socket *Socket
	flags  BroadcastFlags
}

func (b EmitBuilder) Volatile() EmitBuilder {
	b.flags.Volatile = true
	return b
}

func (b EmitBuilder) Compress(compress bool) EmitBuilder {
	b.flags.Compress = compress
	return b
}

func (b EmitBuilder) Emit(eventName string, v ...any) {
	b.socket.emit(b.flags, eventName, v...)
}

func (b EmitBuilder) Send(v ...any) {
	b.socket.emit(b.flags, "message", v...)
}

// Disconnect closes this socket. If close is true, every socket of the
// underlying connection is disconnected and the transport is terminated;
// otherwise only this namespace is left and the connection stays open.
func (s *Socket) Disconnect(close bool) {
	if !s.IsConnected() {
		return
	}

	if close {
		s.conn.DisconnectAll()
		s.conn.Close()
		return
	}

	s.sendControlPacket(parser.PacketTypeDisconnect)
	s.onClose(ReasonServerNamespaceDisconnect)
}

func (s *Socket) onError(err error) {
	handlers := s.errorHandlers.getAll()
	if len(handlers) == 0 {
		// An application error with no handler is a missed integration
		// point. Warn instead of failing silently.
		fmt.Fprintf(os.Stderr, "wiremux: unhandled error on socket %s: %v\n", s.id, err)
		return
	}
	for _, handler := range handlers {
		(*handler)(err)
	}
}

// onClose is the terminal transition. It runs at most once: rooms are
// left, the socket is removed from the namespace and connection indexes,
// and outstanding acks are discarded.
func (s *Socket) onClose(reason string) {
	s.closeOnce.Do(func() {
		if !s.IsConnected() {
			return
		}

		for _, handler := range s.disconnectingHandlers.getAll() {
			(*handler)(reason)
		}

		s.nsp.Adapter().DeleteAll(s.id)
		s.rooms.Clear()

		s.nsp.remove(s)
		s.conn.removeSocket(s)

		s.connectedMu.Lock()
		s.connected = false
		s.connectedMu.Unlock()

		s.acksMu.Lock()
		s.acks = nil
		s.acksMu.Unlock()

		s.debug.Log("closed", reason)
		for _, handler := range s.disconnectHandlers.getAll() {
			(*handler)(reason)
		}
	})
}
