package wiremux

import (
	"reflect"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/wiremux/wiremux/parser"
)

// Per-call emit modifiers. A flags value travels with a single emit and
// is never stored on a socket or namespace, so modifiers cannot leak
// into a later call.
type BroadcastFlags struct {
	Volatile bool
	Compress bool

	// Restrict the broadcast to sockets of this node. Only meaningful
	// for distributed adapters.
	Local bool
}

type BroadcastOptions struct {
	Rooms  mapset.Set[Room]
	Except mapset.Set[Room]
	Flags  BroadcastFlags
}

func NewBroadcastOptions() *BroadcastOptions {
	return &BroadcastOptions{
		Rooms:  mapset.NewSet[Room](),
		Except: mapset.NewSet[Room](),
	}
}

// BroadcastOperator scopes one emission to a set of rooms. Operators are
// immutable: every modifier clones, so an operator can be stored and
// reused without one call affecting another.
type BroadcastOperator struct {
	nsp         string
	adapter     Adapter
	rooms       mapset.Set[Room]
	exceptRooms mapset.Set[Room]
	flags       BroadcastFlags
}

func newBroadcastOperator(nsp string, adapter Adapter) *BroadcastOperator {
	return &BroadcastOperator{
		nsp:         nsp,
		adapter:     adapter,
		rooms:       mapset.NewSet[Room](),
		exceptRooms: mapset.NewSet[Room](),
	}
}

func (b *BroadcastOperator) Clone() *BroadcastOperator {
	n := *b
	n.rooms = b.rooms.Clone()
	n.exceptRooms = b.exceptRooms.Clone()
	return &n
}

func (b *BroadcastOperator) To(room ...Room) *BroadcastOperator {
	n := b.Clone()
	for _, r := range room {
		n.rooms.Add(r)
	}
	return n
}

// Alias of To(...)
func (b *BroadcastOperator) In(room ...Room) *BroadcastOperator {
	return b.To(room...)
}

func (b *BroadcastOperator) Except(room ...Room) *BroadcastOperator {
	n := b.Clone()
	for _, r := range room {
		n.exceptRooms.Add(r)
	}
	return n
}

func (b *BroadcastOperator) Volatile() *BroadcastOperator {
	n := b.Clone()
	n.flags.Volatile = true
	return n
}

func (b *BroadcastOperator) Compress(compress bool) *BroadcastOperator {
	n := b.Clone()
	n.flags.Compress = compress
	return n
}

func (b *BroadcastOperator) Local() *BroadcastOperator {
	n := b.Clone()
	n.flags.Local = true
	return n
}

// Emit sends the event to every matching socket through the adapter.
// Acknowledgements cannot be collected across a broadcast: a trailing
// ack callback is a programmer error and panics before anything is sent.
func (b *BroadcastOperator) Emit(eventName string, v ...any) {
	if IsEventReserved(eventName) {
		panic("wiremux: Emit: attempted to emit a reserved event: `" + eventName + "`")
	}

	if len(v) > 0 {
		rt := reflect.TypeOf(v[len(v)-1])
		if rt != nil && rt.Kind() == reflect.Func {
			panic("wiremux: acks are not supported when broadcasting")
		}
	}

	data := make([]any, 0, len(v)+1)
	data = append(data, eventName)
	data = append(data, v...)

	ptype := parser.PacketTypeEvent
	if parser.HasBinary(data) {
		ptype = parser.PacketTypeBinaryEvent
	}

	packet := &parser.Packet{
		Type:      ptype,
		Namespace: b.nsp,
		Data:      data,
	}

	opts := NewBroadcastOptions()
	opts.Rooms = b.rooms.Clone()
	opts.Except = b.exceptRooms.Clone()
	opts.Flags = b.flags

	b.adapter.Broadcast(packet, opts)
}

// Send emits a "message" event.
func (b *BroadcastOperator) Send(v ...any) {
	args := make([]any, 0, len(v)+1)
	args = append(args, "message")
	args = append(args, v...)

	ptype := parser.PacketTypeEvent
	if parser.HasBinary(args) {
		ptype = parser.PacketTypeBinaryEvent
	}

	packet := &parser.Packet{
		Type:      ptype,
		Namespace: b.nsp,
		Data:      args,
	}

	opts := NewBroadcastOptions()
	opts.Rooms = b.rooms.Clone()
	opts.Except = b.exceptRooms.Clone()
	opts.Flags = b.flags

	b.adapter.Broadcast(packet, opts)
}
