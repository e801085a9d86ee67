package server

import "sync"

// Registry maintains the binding between connection ids and authenticated
// usernames. A username is bound to at most one connection; binding it
// again displaces the earlier connection.
type Registry struct {
	mu     sync.Mutex
	byConn map[uint32]string
	byUser map[string]uint32
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[uint32]string),
		byUser: make(map[string]uint32),
	}
}

// Attach binds a username to a connection. When the username was already
// bound elsewhere, the displaced connection id is returned.
func (r *Registry) Attach(connID uint32, username string) (displaced uint32, wasDisplaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[username]; ok && old != connID {
		delete(r.byConn, old)
		displaced = old
		wasDisplaced = true
	}
	if prev, ok := r.byConn[connID]; ok && prev != username {
		delete(r.byUser, prev)
	}
	r.byConn[connID] = username
	r.byUser[username] = connID
	return displaced, wasDisplaced
}

// Detach removes a connection's binding and reports the username it held.
// A connection displaced by a takeover was already unbound, so its later
// disconnect detaches nothing.
func (r *Registry) Detach(connID uint32) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	if r.byUser[username] == connID {
		delete(r.byUser, username)
	}
	return username, true
}

// Username returns the username bound to a connection, if any.
func (r *Registry) Username(connID uint32) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byConn[connID]
	return username, ok
}

// Conn returns the connection a username is bound to, if any.
func (r *Registry) Conn(username string) (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID, ok := r.byUser[username]
	return connID, ok
}

// Authenticated reports whether a connection holds a binding.
func (r *Registry) Authenticated(connID uint32) bool {
	_, ok := r.Username(connID)
	return ok
}

// Count returns the number of authenticated connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.byConn)
}
