package memory

import (
	"sort"
	"sync"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"
)

type registryEntry struct {
	session domain.SessionID
	conn    ports.Connection
}

// ConnectionRegistry maps each online identity to its single live connection.
type ConnectionRegistry struct {
	mu          sync.RWMutex
	entries     map[domain.UserID]registryEntry
	lastSession domain.SessionID
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		entries: make(map[domain.UserID]registryEntry),
	}
}

// Register binds conn to identity, replacing any earlier binding.
func (r *ConnectionRegistry) Register(identity domain.UserID, conn ports.Connection) ports.Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastSession++
	prev, existed := r.entries[identity]
	r.entries[identity] = registryEntry{session: r.lastSession, conn: conn}

	reg := ports.Registration{
		Session: r.lastSession,
		Joined:  !existed,
	}
	if existed {
		reg.Superseded = prev.conn
	}
	return reg
}

// Unregister removes identity only while session is still the one on file.
// A disconnect from a superseded session is a no-op.
func (r *ConnectionRegistry) Unregister(identity domain.UserID, session domain.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[identity]
	if !ok || entry.session != session {
		return false
	}
	delete(r.entries, identity)
	return true
}

func (r *ConnectionRegistry) Lookup(identity domain.UserID) (ports.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[identity]
	if !ok {
		return nil, false
	}
	return entry.conn, true
}

// Snapshot returns the online identities, sorted.
func (r *ConnectionRegistry) Snapshot() []domain.UserID {
	r.mu.RLock()
	ids := make([]domain.UserID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *ConnectionRegistry) Connections() []ports.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]ports.Connection, 0, len(r.entries))
	for _, entry := range r.entries {
		conns = append(conns, entry.conn)
	}
	return conns
}

func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
