package wiremux

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/wiremux/wiremux/internal/sync"
	"github.com/wiremux/wiremux/parser"
	"github.com/wiremux/wiremux/transport"
)

// The default single-node adapter. Membership is held in two mapset
// indexes; broadcasts encode the packet once and write the frames to
// every matching socket's connection.
type inMemoryAdapter struct {
	mu    sync.Mutex
	rooms map[Room]mapset.Set[SocketID]
	sids  map[SocketID]mapset.Set[Room]

	namespace *Namespace
	sockets   *NamespaceSocketStore
	parser    parser.Parser
}

func NewInMemoryAdapter(namespace *Namespace) Adapter {
	return &inMemoryAdapter{
		rooms:     make(map[Room]mapset.Set[SocketID]),
		sids:      make(map[SocketID]mapset.Set[Room]),
		namespace: namespace,
		sockets:   namespace.SocketStore(),
		parser:    namespace.server.parserCreator(),
	}
}

func (a *inMemoryAdapter) Add(sid SocketID, rooms ...Room) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sids[sid]
	if !ok {
		s = mapset.NewThreadUnsafeSet[Room]()
		a.sids[sid] = s
	}

	for _, room := range rooms {
		s.Add(room)

		r, ok := a.rooms[room]
		if !ok {
			r = mapset.NewThreadUnsafeSet[SocketID]()
			a.rooms[room] = r
		}
		r.Add(sid)
	}
	return nil
}

func (a *inMemoryAdapter) Delete(sid SocketID, room Room) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sids[sid]
	if ok {
		s.Remove(room)
	}

	a.delete(sid, room)
	return nil
}

func (a *inMemoryAdapter) delete(sid SocketID, room Room) {
	r, ok := a.rooms[room]
	if ok {
		r.Remove(sid)
		if r.Cardinality() == 0 {
			delete(a.rooms, room)
		}
	}
}

func (a *inMemoryAdapter) DeleteAll(sid SocketID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sids[sid]
	if !ok {
		return
	}

	s.Each(func(room Room) bool {
		a.delete(sid, room)
		return false
	})

	delete(a.sids, sid)
}

func (a *inMemoryAdapter) Broadcast(packet *parser.Packet, opts *BroadcastOptions) {
	buffers, err := a.parser.Encode(packet)
	if err != nil {
		a.namespace.debug.Log("adapter: broadcast encode failed", err)
		return
	}

	writeOpts := &transport.WriteOptions{
		Volatile: opts.Flags.Volatile,
		Compress: opts.Flags.Compress,
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.apply(opts, func(sid SocketID) {
		a.sockets.SendFrames(sid, buffers, writeOpts)
	})
}

// The return value 'sids' must be a thread safe mapset.Set.
func (a *inMemoryAdapter) Sockets(rooms mapset.Set[Room]) (sids mapset.Set[SocketID], err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sids = mapset.NewSet[SocketID]()
	opts := NewBroadcastOptions()
	if rooms != nil {
		opts.Rooms = rooms
	}

	a.apply(opts, func(sid SocketID) {
		sids.Add(sid)
	})
	return sids, nil
}

// The return value 'rooms' must be a thread safe mapset.Set.
func (a *inMemoryAdapter) SocketRooms(sid SocketID) (rooms mapset.Set[Room], ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sids[sid]
	if !ok {
		return nil, false
	}

	rooms = mapset.NewSet[Room]()
	s.Each(func(room Room) bool {
		rooms.Add(room)
		return false
	})
	return rooms, true
}

// apply must be called with a.mu held.
func (a *inMemoryAdapter) apply(opts *BroadcastOptions, callback func(sid SocketID)) {
	exceptSids := a.computeExceptSids(opts.Except)

	// If rooms were targeted, only sockets in those rooms are used.
	// Otherwise every socket of the namespace is.
	if opts.Rooms.Cardinality() > 0 {
		ids := mapset.NewThreadUnsafeSet[SocketID]()
		opts.Rooms.Each(func(room Room) bool {
			r, ok := a.rooms[room]
			if !ok {
				return false
			}

			r.Each(func(sid SocketID) bool {
				if ids.Contains(sid) || exceptSids.Contains(sid) {
					return false
				}
				if _, ok := a.sockets.Get(sid); ok {
					callback(sid)
					ids.Add(sid)
				}
				return false
			})
			return false
		})
	} else {
		for sid := range a.sids {
			if exceptSids.Contains(sid) {
				continue
			}
			if _, ok := a.sockets.Get(sid); ok {
				callback(sid)
			}
		}
	}
}

// Beware that the return value 'exceptSids' is thread unsafe.
func (a *inMemoryAdapter) computeExceptSids(exceptRooms mapset.Set[Room]) (exceptSids mapset.Set[SocketID]) {
	exceptSids = mapset.NewThreadUnsafeSet[SocketID]()

	if exceptRooms.Cardinality() > 0 {
		exceptRooms.Each(func(room Room) bool {
			r, ok := a.rooms[room]
			if ok {
				r.Each(func(sid SocketID) bool {
					exceptSids.Add(sid)
					return false
				})
			}
			return false
		})
	}
	return
}

func (a *inMemoryAdapter) Close() {}
