package relay

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry indexes live connections by user id. Every connection, including
// ones that have not authenticated yet, is also tracked for the heartbeat
// and for shutdown.
type Registry struct {
	mu     sync.RWMutex
	byUser map[int64]map[uuid.UUID]*Conn
	all    map[uuid.UUID]*Conn
}

type Stats struct {
	Users       int `json:"users" cbor:"users"`
	Connections int `json:"connections" cbor:"connections"`
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[int64]map[uuid.UUID]*Conn),
		all:    make(map[uuid.UUID]*Conn),
	}
}

func (r *Registry) Track(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all[c.ID()] = c
}

// Register binds c to its user and returns how many connections that user
// now has.
func (r *Registry) Register(c *Conn) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.all[c.ID()] = c
	set := r.byUser[c.UserID()]
	if set == nil {
		set = make(map[uuid.UUID]*Conn)
		r.byUser[c.UserID()] = set
	}
	set[c.ID()] = c
	return len(set)
}

// Remove forgets c. registered is false for connections that never
// authenticated; remaining is what is left for the user.
func (r *Registry) Remove(c *Conn) (remaining int, registered bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.all, c.ID())
	set, ok := r.byUser[c.UserID()]
	if !ok {
		return 0, false
	}
	if _, ok := set[c.ID()]; !ok {
		return len(set), false
	}
	delete(set, c.ID())
	if len(set) == 0 {
		delete(r.byUser, c.UserID())
		return 0, true
	}
	return len(set), true
}

// Snapshot returns the connections of the given users at this instant.
func (r *Registry) Snapshot(userIDs []int64) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Conn
	for _, userID := range userIDs {
		for _, c := range r.byUser[userID] {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) All() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Conn, 0, len(r.all))
	for _, c := range r.all {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Tracked(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.all[id]
	return ok
}

func (r *Registry) Count(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

func (r *Registry) Users() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int64, 0, len(r.byUser))
	for userID := range r.byUser {
		out = append(out, userID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Users: len(r.byUser)}
	for _, set := range r.byUser {
		stats.Connections += len(set)
	}
	return stats
}
