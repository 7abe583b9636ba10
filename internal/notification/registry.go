package notification

import "sync"

// Registry maps a buyer's email to their active websocket connection id.
// A buyer reconnecting replaces the previous entry; disconnect only removes
// the entry if it still belongs to the closing connection.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]string),
	}
}

func (r *Registry) Register(email, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[email] = connectionID
}

func (r *Registry) Unregister(email, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.connections[email]; ok && current == connectionID {
		delete(r.connections, email)
	}
}

func (r *Registry) ConnectionID(email string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connectionID, ok := r.connections[email]
	return connectionID, ok
}
