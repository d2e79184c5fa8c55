package wiremux

import (
	"time"

	"github.com/wiremux/wiremux/internal/sync"
	"github.com/wiremux/wiremux/parser"
	jsonparser "github.com/wiremux/wiremux/parser/json"
	"github.com/wiremux/wiremux/transport"
)

const DefaultConnectTimeout = 45 * time.Second

type ServerConfig struct {
	// Codec used for every connection. Defaults to the JSON parser.
	ParserCreator parser.Creator

	// Adapter bound to every newly created namespace. Defaults to the
	// in-memory adapter.
	AdapterCreator AdapterCreator

	// Connections that haven't joined any namespace within this
	// duration are closed. Defaults to DefaultConnectTimeout.
	ConnectTimeout time.Duration

	Debugger Debugger
}

type Server struct {
	parserCreator parser.Creator

	adapterCreator   AdapterCreator
	adapterCreatorMu sync.RWMutex

	namespaces *Registry
	conns      *connStore

	connectTimeout time.Duration
	debug          Debugger
}

type connStore struct {
	conns map[string]*Conn
	mu    sync.Mutex
}

func newConnStore() *connStore {
	return &connStore{
		conns: make(map[string]*Conn),
	}
}

func (s *connStore) Set(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c.ID()] = c
}

func (s *connStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

func (s *connStore) GetAndRemoveAll() (conns []*Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conns = make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[string]*Conn)
	return
}

func NewServer(config *ServerConfig) *Server {
	if config == nil {
		config = new(ServerConfig)
	}

	server := &Server{
		parserCreator:  config.ParserCreator,
		adapterCreator: config.AdapterCreator,
		namespaces:     newRegistry(),
		conns:          newConnStore(),
		connectTimeout: config.ConnectTimeout,
		debug:          config.Debugger,
	}

	if server.parserCreator == nil {
		server.parserCreator = jsonparser.NewCreator(0)
	}
	if server.adapterCreator == nil {
		server.adapterCreator = NewInMemoryAdapter
	}
	if server.connectTimeout == 0 {
		server.connectTimeout = DefaultConnectTimeout
	}
	if server.debug == nil {
		server.debug = NewNoopDebugger()
	}

	// The default namespace always exists.
	server.Of("/")
	return server
}

// Of returns the namespace with the given path, creating it if needed.
func (s *Server) Of(name string) *Namespace {
	if len(name) == 0 || name[0] != '/' {
		name = "/" + name
	}
	nsp, _ := s.namespaces.GetOrCreate(name, s)
	return nsp
}

func (s *Server) currentAdapterCreator() AdapterCreator {
	s.adapterCreatorMu.RLock()
	defer s.adapterCreatorMu.RUnlock()
	return s.adapterCreator
}

// SetAdapter swaps the adapter of every namespace, current and future.
// Sockets already admitted are re-indexed into the new adapters.
func (s *Server) SetAdapter(creator AdapterCreator) {
	s.adapterCreatorMu.Lock()
	s.adapterCreator = creator
	s.adapterCreatorMu.Unlock()

	for _, nsp := range s.namespaces.GetAll() {
		nsp.setAdapter(creator)
	}
}

// Use registers a middleware on the default namespace.
func (s *Server) Use(f MiddlewareFunc) {
	s.Of("/").Use(f)
}

// OnConnect delegates to the default namespace.
func (s *Server) OnConnect(f NamespaceConnectionFunc) *NamespaceConnectionFunc {
	return s.Of("/").OnConnect(f)
}

// OnConnection delegates to the default namespace.
func (s *Server) OnConnection(f NamespaceConnectionFunc) *NamespaceConnectionFunc {
	return s.Of("/").OnConnection(f)
}

// Emit broadcasts on the default namespace.
func (s *Server) Emit(eventName string, v ...any) {
	s.Of("/").Emit(eventName, v...)
}

// Send emits a "message" event on the default namespace.
func (s *Server) Send(v ...any) {
	s.Of("/").Send(v...)
}

func (s *Server) To(room ...Room) *BroadcastOperator {
	return s.Of("/").To(room...)
}

// Alias of To(...)
func (s *Server) In(room ...Room) *BroadcastOperator {
	return s.To(room...)
}

// NewConn attaches a freshly accepted transport and starts
// demultiplexing it.
func (s *Server) NewConn(t transport.Transport) *Conn {
	c := newConn(s, t)
	s.conns.Set(c)
	c.open()
	return c
}

// Close tears down every connection with reason "forced server close"
// and releases the adapters.
func (s *Server) Close() {
	for _, c := range s.conns.GetAndRemoveAll() {
		c.Close()
	}
	for _, nsp := range s.namespaces.GetAll() {
		nsp.Adapter().Close()
	}
}
