package chat

import (
	"fmt"
	"time"
)

// UserID identifies the author of a message. It is assumed authentic once it reaches the relay.
type UserID string

func (u UserID) String() string { return string(u) }

func (u UserID) MarshalJSON() ([]byte, error) { return marshalID(string(u)) }

func (u *UserID) UnmarshalJSON(data []byte) error {
	s, err := unmarshalID(data)
	if err != nil {
		return fmt.Errorf("userId: %w", err)
	}
	*u = UserID(s)
	return nil
}

// Message is an immutable stored chat message.
// ID and CreatedAt are assigned by the persistent store at commit time.
type Message struct {
	ID        int64
	RoomID    RoomID
	UserID    UserID
	Content   string
	CreatedAt time.Time
}
