// Package event defines the frames crossing the transport boundary and the bus.
package event

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Type string

const (
	TypeJoin    Type = "join"
	TypeMessage Type = "message"
	TypeJoined  Type = "joined"
	TypeError   Type = "error"
)

// Inbound is one frame received from a client.
type Inbound struct {
	Type    Type        `json:"type"`
	RoomID  chat.RoomID `json:"roomId"`
	UserID  chat.UserID `json:"userId"`
	Content string      `json:"content"`
}

// Outbound is implemented by every frame the relay sends to a client.
type Outbound interface {
	EventType() Type
}

type Joined struct {
	Type   Type        `json:"type"`
	RoomID chat.RoomID `json:"roomId"`
}

func NewJoined(roomID chat.RoomID) Joined {
	return Joined{Type: TypeJoined, RoomID: roomID}
}

func (Joined) EventType() Type { return TypeJoined }

// Message is the event published on the bus once a message is stored.
type Message struct {
	Type      Type        `json:"type"`
	ID        int64       `json:"id" validate:"gt=0"`
	RoomID    chat.RoomID `json:"roomId" validate:"required"`
	UserID    chat.UserID `json:"userId" validate:"required"`
	Content   string      `json:"content" validate:"required"`
	CreatedAt time.Time   `json:"createdAt"`
}

func NewMessage(m chat.Message) Message {
	return Message{
		Type:      TypeMessage,
		ID:        m.ID,
		RoomID:    m.RoomID,
		UserID:    m.UserID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func (Message) EventType() Type { return TypeMessage }

type Error struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}

func (Error) EventType() Type { return TypeError }

func Encode(e Outbound) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeInbound parses a client frame. Only the JSON shape is checked here,
// field requirements depend on the frame type and are checked by the relay.
func DecodeInbound(raw []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", errors.ErrMalformedInput, err)
	}
	return in, nil
}

// DecodeMessage parses and validates a message event received from the bus.
func DecodeMessage(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", errors.ErrBusDeliveryNoise, err)
	}
	if m.Type != TypeMessage {
		return Message{}, fmt.Errorf("%w: unexpected type %q", errors.ErrBusDeliveryNoise, m.Type)
	}
	if err := validate.Struct(m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", errors.ErrBusDeliveryNoise, err)
	}
	if m.CreatedAt.IsZero() {
		return Message{}, fmt.Errorf("%w: missing createdAt", errors.ErrBusDeliveryNoise)
	}
	return m, nil
}
