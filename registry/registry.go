// Package registry holds the authoritative mapping of live connections to
// usernames. It is the single source of truth for "who is online".
package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/hmaekawa/caster/domain"
)

// ErrAlreadyRegistered is returned when a connection registers twice.
var ErrAlreadyRegistered = errors.New("client already registered")

// Entry is one immutable (connection, username) pair from a snapshot.
type Entry struct {
	Client   domain.Client
	Username string
}

type entry struct {
	client   domain.Client
	username string
	seq      uint64
}

// Registry is the mutex-guarded client map. All reads and writes happen under
// one lock; iteration for broadcast happens over Snapshot copies so the lock
// is never held across network writes.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*entry
	seq     uint64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		clients: make(map[string]*entry),
	}
}

// Register inserts a client under its username. At most one entry per
// connection; usernames are not required to be unique.
func (r *Registry) Register(client domain.Client, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[client.ID()]; exists {
		return ErrAlreadyRegistered
	}

	r.seq++
	r.clients[client.ID()] = &entry{
		client:   client,
		username: username,
		seq:      r.seq,
	}
	return nil
}

// Unregister removes the entry for clientID if present, returning its
// username. Removing an absent client is a no-op; concurrent paths may both
// attempt removal.
func (r *Registry) Unregister(clientID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.clients[clientID]
	if !ok {
		return "", false
	}
	delete(r.clients, clientID)
	return e.username, true
}

// Snapshot returns an immutable copy of the current entries in join order.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	ordered := make([]*entry, 0, len(r.clients))
	for _, e := range r.clients {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })

	entries := make([]Entry, len(ordered))
	for i, e := range ordered {
		entries[i] = Entry{Client: e.client, Username: e.username}
	}
	return entries
}

// Usernames returns the online user list in join order.
func (r *Registry) Usernames() []string {
	entries := r.Snapshot()
	users := make([]string, len(entries))
	for i, e := range entries {
		users[i] = e.Username
	}
	return users
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
