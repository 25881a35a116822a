package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	id string
}

func newRegistrySink() *Sink {
	return &Sink{id: uuid.NewString()}
}

func (s *Sink) ID() string { return s.id }

func (s *Sink) Send(_ context.Context, _ []byte) error { return nil }

func TestRegistry_Add_One_Room_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := chat.RoomID("1")
	sink := newRegistrySink()

	// Given no room exists
	req.Zero(registry.Rooms())
	req.Nil(registry.Members(roomID))

	// When a connection joins a room
	added := registry.Add(roomID, sink)

	// Then
	req.True(added)
	req.Equal(1, registry.Rooms())
	req.Equal(1, registry.Count(roomID))
	req.Contains(registry.Members(roomID), contract.Connection(sink))
}

func TestRegistry_Add_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := chat.RoomID("1")
	sink := newRegistrySink()

	// When the same connection is added twice
	req.True(registry.Add(roomID, sink))
	req.False(registry.Add(roomID, sink))

	// Then the membership grew by one only
	req.Equal(1, registry.Count(roomID))
	req.Len(registry.Members(roomID), 1)
}

func TestRegistry_Add_One_Room_Multiple_Connections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := chat.RoomID("1")
	sink1 := newRegistrySink()
	sink2 := newRegistrySink()

	registry.Add(roomID, sink1)
	registry.Add(roomID, sink2)

	req.Equal(1, registry.Rooms())
	members := registry.Members(roomID)
	req.Len(members, 2)
	req.ElementsMatch([]contract.Connection{sink1, sink2}, members)
}

func TestRegistry_Remove_Last_Connection_Prunes_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := chat.RoomID("1")
	sink := newRegistrySink()

	// Given a connection joined a room
	registry.Add(roomID, sink)

	// When it leaves
	remaining := registry.Remove(roomID, sink)

	// Then the room doesn't exist anymore
	req.Zero(remaining)
	req.Zero(registry.Rooms())
	req.Nil(registry.Members(roomID))
}

func TestRegistry_Remove_Keeps_Other_Members(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := chat.RoomID("1")
	sink1 := newRegistrySink()
	sink2 := newRegistrySink()

	registry.Add(roomID, sink1)
	registry.Add(roomID, sink2)

	remaining := registry.Remove(roomID, sink1)

	req.Equal(1, remaining)
	req.Equal([]contract.Connection{sink2}, registry.Members(roomID))
}

func TestRegistry_Remove_Unknown_Room_Or_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := chat.RoomID("1")
	sink := newRegistrySink()

	req.Zero(registry.Remove(roomID, sink))

	registry.Add(roomID, sink)
	req.Equal(1, registry.Remove(roomID, newRegistrySink()))
}

func TestRegistry_Rooms_Are_Isolated(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink1 := newRegistrySink()
	sink2 := newRegistrySink()

	registry.Add("1", sink1)
	registry.Add("2", sink2)

	req.Equal(2, registry.Rooms())
	req.Equal([]contract.Connection{sink1}, registry.Members("1"))
	req.Equal([]contract.Connection{sink2}, registry.Members("2"))
}

func TestRegistry_Snapshot_Survives_Concurrent_Mutations(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := chat.RoomID("busy")

	for i := 0; i < 10; i++ {
		registry.Add(roomID, newRegistrySink())
	}
	snapshot := registry.Members(roomID)

	// When connections keep joining and leaving while the snapshot is iterated
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink := newRegistrySink()
			registry.Add(roomID, sink)
			registry.Members(roomID)
			registry.Remove(roomID, sink)
		}()
	}
	seen := 0
	for range snapshot {
		seen++
	}
	wg.Wait()

	// Then the snapshot is untouched and the registry is consistent
	req.Equal(10, seen)
	req.Equal(10, registry.Count(roomID))
}
