package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"sync"
)

type Set map[string]contract.Connection

// Registry maps each room to the connections joined to it on this process.
// Critical sections are map operations only; no I/O ever happens under the lock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[chat.RoomID]Set // map room to connection id -> connection
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[chat.RoomID]Set),
	}
}

// Add registers a connection in a room, creating the room set on the fly.
// It returns false when the connection was already a member.
func (r *Registry) Add(roomID chat.RoomID, conn contract.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(Set)
		r.rooms[roomID] = members
	}
	if _, exists := members[conn.ID()]; exists {
		return false
	}
	members[conn.ID()] = conn
	return true
}

// Remove drops a connection from a room and returns how many local members remain.
// Empty rooms are pruned so the map does not grow with every room ever joined.
func (r *Registry) Remove(roomID chat.RoomID, conn contract.Connection) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	delete(members, conn.ID())

	// If no one is left in the room, remove the room entry entirely
	if len(members) == 0 {
		delete(r.rooms, roomID)
		return 0
	}
	return len(members)
}

// Members returns a point-in-time copy of the room members.
// Callers may iterate it freely while other connections join or leave.
// Returns nil if the room doesn't exist or has no members.
func (r *Registry) Members(roomID chat.RoomID) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	snapshot := make([]contract.Connection, 0, len(members))
	for _, conn := range members {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

func (r *Registry) Count(roomID chat.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// Rooms returns the number of rooms with at least one local member.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
