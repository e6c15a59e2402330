package gateway

import "sync"

// Registry tracks live client connections. All methods are safe for
// concurrent use; the mutex is never held while invoking a tool.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*ClientConnection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*ClientConnection),
	}
}

// Register inserts a connection. Re-registering an id replaces the entry;
// closing the replaced transport is the caller's job.
func (r *Registry) Register(conn *ClientConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = conn
}

// Unregister removes a connection and reports whether it was present.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[id]
	delete(r.conns, id)
	return ok
}

// Get retrieves a connection by id.
func (r *Registry) Get(id string) (*ClientConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// Snapshot returns a point-in-time copy of the registered connections.
// The slice is safe to iterate while the registry keeps mutating.
func (r *Registry) Snapshot() []*ClientConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*ClientConnection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ActiveCount returns how many connections are in the Active state.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	active := 0
	for _, conn := range r.conns {
		if conn.State() == StateActive {
			active++
		}
	}
	return active
}
