package wiremux

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/wiremux/wiremux/parser"
)

// A public ID identifying one socket. Unique per process: it combines
// the namespace path and the connection ID.
type SocketID string

type Room string

type AdapterCreator func(namespace *Namespace) Adapter

// Adapter stores room membership and performs broadcast fan-out for one
// namespace. It is the only resource shared by all sockets of a
// namespace: implementations must make concurrent calls safe. A
// distributed adapter may block; the core never calls it while holding
// its own locks.
type Adapter interface {
	Add(sid SocketID, rooms ...Room) error
	Delete(sid SocketID, room Room) error

	// DeleteAll removes sid from every room. Unknown sids are a no-op.
	DeleteAll(sid SocketID)

	Broadcast(packet *parser.Packet, opts *BroadcastOptions)

	// Sockets returns the IDs of the sockets in the given rooms, or of
	// every socket in the namespace when rooms is empty. The returned
	// set is thread safe.
	Sockets(rooms mapset.Set[Room]) (sids mapset.Set[SocketID], err error)

	// SocketRooms returns the rooms sid has joined. The returned set is
	// thread safe.
	SocketRooms(sid SocketID) (rooms mapset.Set[Room], ok bool)

	Close()
}
