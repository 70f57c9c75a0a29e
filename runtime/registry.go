package runtime

import (
	"chat-service/contract"
	"sync"

	"github.com/google/uuid"
)

var _ contract.IRegistry = (*Registry)(nil)

// Registry maps a chat room to the sessions currently attached to it.
// A room entry exists only while it holds at least one session.
// The lock is held for the map operation only, never across I/O.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[string]contract.SessionSink // room -> session ID -> sink
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[uuid.UUID]map[string]contract.SessionSink)}
}

// Join attaches a session to a room, creating the room entry on the fly.
func (r *Registry) Join(room uuid.UUID, sink contract.SessionSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]contract.SessionSink)
		r.rooms[room] = members
	}
	members[sink.ID()] = sink
}

// Leave detaches a session and drops the room entry once it is empty.
// Leaving an unknown room or an unknown session is a no-op.
func (r *Registry) Leave(room uuid.UUID, sink contract.SessionSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, sink.ID())
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Snapshot copies the sessions of a room so that fan-out runs without the lock.
// Returns nil if the room has no session.
func (r *Registry) Snapshot(room uuid.UUID) []contract.SessionSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[room]
	if !ok {
		return nil
	}
	sinks := make([]contract.SessionSink, 0, len(members))
	for _, sink := range members {
		sinks = append(sinks, sink)
	}
	return sinks
}

func (r *Registry) Count(room uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// CloseAll closes every attached session. Used on shutdown; each session
// leaves the registry on its own while closing.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	var sinks []contract.SessionSink
	for _, members := range r.rooms {
		for _, sink := range members {
			sinks = append(sinks, sink)
		}
	}
	r.mu.RUnlock()

	for _, sink := range sinks {
		sink.Close()
	}
}
