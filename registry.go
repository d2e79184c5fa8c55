package wiremux

import "github.com/wiremux/wiremux/internal/sync"

// Registry maps namespace paths to namespaces, creating them lazily.
// It is owned by the server; there is no ambient global table.
type Registry struct {
	nsps map[string]*Namespace
	mu   sync.Mutex
}

func newRegistry() *Registry {
	return &Registry{
		nsps: make(map[string]*Namespace),
	}
}

func (r *Registry) GetOrCreate(name string, server *Server) (namespace *Namespace, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	namespace, ok := r.nsps[name]
	if !ok {
		namespace = newNamespace(name, server, server.currentAdapterCreator())
		r.nsps[name] = namespace
		created = true
	}
	return
}

func (r *Registry) Get(name string) (namespace *Namespace, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	namespace, ok = r.nsps[name]
	return
}

func (r *Registry) GetAll() []*Namespace {
	r.mu.Lock()
	defer r.mu.Unlock()

	nsps := make([]*Namespace, 0, len(r.nsps))
	for _, nsp := range r.nsps {
		nsps = append(nsps, nsp)
	}
	return nsps
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nsps)
}
