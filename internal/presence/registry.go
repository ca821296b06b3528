package presence

import "sync"

// Conn is a live connection handle. Deliver must never block; slow consumers
// are the connection's problem, not the registry's.
type Conn interface {
	Deliver(payload []byte)
	Close()
}

// Registry maps authenticated users to their live connections. A user may hold
// many simultaneous connections (one per device). State is process-local and
// rebuilt from zero on restart.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[Conn]struct{})}
}

func (r *Registry) Register(userID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[userID] = set
	}
	set[c] = struct{}{}
}

func (r *Registry) Unregister(userID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
}

// ConnectionsFor returns a snapshot of the user's live connections, safe to
// iterate without holding the registry lock.
func (r *Registry) ConnectionsFor(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.conns[userID]
	if !ok {
		return nil
	}
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// Drain closes every connection and empties the registry. Called at shutdown.
func (r *Registry) Drain() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]map[Conn]struct{})
	r.mu.Unlock()

	for _, set := range conns {
		for c := range set {
			c.Close()
		}
	}
}
