// Package runtime holds the real-time relay: connection registry, bus bridge and the
// join / post / fan-out pipeline. It contains no transport or storage code.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Session is the relay-owned record of one connection.
// Its room is only mutated by Join and Disconnect.
type Session struct {
	mu   sync.Mutex
	conn contract.Connection
	room chat.RoomID
}

func (s *Session) currentRoom() chat.RoomID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

type Relay struct {
	log              *slog.Logger
	registry         contract.IRegistry
	bridge           *Bridge
	store            contract.IMessageRepository
	maxContentLength int
}

// NewRelay wires the relay on a registry, a bus and a store.
// maxContentLength bounds the content in runes, zero disables the check.
func NewRelay(log *slog.Logger, registry contract.IRegistry, bus contract.Bus,
	store contract.IMessageRepository, maxContentLength int) *Relay {
	r := &Relay{
		log:              log,
		registry:         registry,
		store:            store,
		maxContentLength: maxContentLength,
	}
	r.bridge = NewBridge(log, bus, r.Deliver)
	return r
}

// Attach creates the session of a freshly accepted connection.
func (r *Relay) Attach(conn contract.Connection) *Session {
	return &Session{conn: conn}
}

// Handle parses one inbound frame and dispatches it.
// Every failure has already been reported to the sender when Handle returns.
func (r *Relay) Handle(ctx context.Context, s *Session, frame []byte) error {
	in, err := event.DecodeInbound(frame)
	if err != nil {
		r.reject(ctx, s, err)
		return err
	}

	switch in.Type {
	case event.TypeJoin:
		return r.Join(ctx, s, in.RoomID)
	case event.TypeMessage:
		return r.Post(ctx, s, chat.PostMessageCommand{
			RoomID:  in.RoomID,
			UserID:  in.UserID,
			Content: in.Content,
		})
	default:
		err = fmt.Errorf("%w: %q", errors.ErrUnknownEventType, in.Type)
		r.reject(ctx, s, err)
		return err
	}
}

// Join moves the session to roomID, leaving its previous room if any.
// Joining the room the session is already in only repeats the joined event.
func (r *Relay) Join(ctx context.Context, s *Session, roomID chat.RoomID) error {
	if err := validate.Struct(chat.JoinCommand{RoomID: roomID}); err != nil {
		err = errors.Validation(errors.MsgRoomRequired, err)
		r.reject(ctx, s, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == roomID {
		r.send(ctx, s.conn, event.NewJoined(roomID))
		return nil
	}
	if s.room != "" {
		r.leave(ctx, s)
	}

	r.registry.Add(roomID, s.conn)
	if err := r.bridge.Acquire(ctx, roomID.Topic()); err != nil {
		r.registry.Remove(roomID, s.conn)
		r.log.Error("Failed to subscribe room topic",
			"connection_id", s.conn.ID(),
			"room_id", roomID,
			"error", err)
		r.send(ctx, s.conn, event.NewError(errors.MsgJoinFailed))
		return err
	}
	s.room = roomID

	r.log.Debug("Connection joined room", "connection_id", s.conn.ID(), "room_id", roomID)
	r.send(ctx, s.conn, event.NewJoined(roomID))
	return nil
}

// Post stores a message then publishes it on the room topic.
// The sender is not echoed directly: it gets the event through the bus like every member.
func (r *Relay) Post(ctx context.Context, s *Session, cmd chat.PostMessageCommand) error {
	if err := r.validatePost(cmd); err != nil {
		r.reject(ctx, s, err)
		return err
	}

	msg, err := r.store.Append(ctx, cmd.RoomID, cmd.UserID, cmd.Content)
	if err != nil {
		err = fmt.Errorf("%w: %v", errors.ErrStore, err)
		r.log.Error("Failed to save message", "room_id", cmd.RoomID, "user_id", cmd.UserID, "error", err)
		r.reject(ctx, s, err)
		return err
	}

	payload, err := event.Encode(event.NewMessage(msg))
	if err != nil {
		r.log.Error("Failed to encode message event", "message_id", msg.ID, "error", err)
		r.reject(ctx, s, err)
		return err
	}

	if err = r.bridge.Publish(ctx, cmd.RoomID.Topic(), payload); err != nil {
		r.log.Error("Failed to publish message", "room_id", cmd.RoomID, "message_id", msg.ID, "error", err)
		r.reject(ctx, s, err)
		return err
	}
	return nil
}

func (r *Relay) validatePost(cmd chat.PostMessageCommand) error {
	trimmed := cmd
	trimmed.Content = strings.TrimSpace(cmd.Content)
	if err := validate.Struct(trimmed); err != nil {
		return errors.Validation(errors.MsgPostRequired, err)
	}
	if r.maxContentLength > 0 && utf8.RuneCountInString(trimmed.Content) > r.maxContentLength {
		return errors.Validation(errors.MsgContentTooLong, nil)
	}
	return nil
}

// Disconnect removes the session from its room. It never fails: bus errors are logged.
func (r *Relay) Disconnect(ctx context.Context, s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == "" {
		return
	}
	r.leave(ctx, s)
}

// leave clears the session room. Caller holds s.mu.
func (r *Relay) leave(ctx context.Context, s *Session) {
	roomID := s.room
	s.room = ""
	r.registry.Remove(roomID, s.conn)
	if err := r.bridge.Release(ctx, roomID.Topic()); err != nil {
		r.log.Warn("Failed to release room topic", "room_id", roomID, "error", err)
	}
	r.log.Debug("Connection left room", "connection_id", s.conn.ID(), "room_id", roomID)
}

// Deliver is the bus subscriber callback. It runs once per process for every event
// published on a subscribed topic, including the ones this process published.
func (r *Relay) Deliver(ctx context.Context, topic chat.Topic, payload []byte) {
	roomID, ok := topic.RoomID()
	if !ok {
		r.log.Warn("Dropping bus payload", "topic", topic, "error", errors.ErrBusDeliveryNoise)
		return
	}
	msg, err := event.DecodeMessage(payload)
	if err != nil {
		r.log.Warn("Dropping bus payload", "topic", topic, "error", err)
		return
	}
	frame, err := event.Encode(msg)
	if err != nil {
		r.log.Error("Failed to encode message event", "message_id", msg.ID, "error", err)
		return
	}

	for _, conn := range r.registry.Members(roomID) {
		if err = conn.Send(ctx, frame); err != nil {
			r.log.Debug("Failed to deliver event",
				"connection_id", conn.ID(),
				"room_id", roomID,
				"message_id", msg.ID,
				"error", err)
		}
	}
}

// History returns a page of stored messages, newest first.
func (r *Relay) History(ctx context.Context, cmd chat.GetMessageCommand) ([]chat.Message, error) {
	if err := validate.Struct(cmd); err != nil {
		return nil, errors.Validation("invalid history query", err)
	}
	messages, err := r.store.History(ctx, cmd.RoomID, cmd.Before, cmd.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStore, err)
	}
	return messages, nil
}

// Rooms returns the number of rooms with local members.
func (r *Relay) Rooms() int {
	return r.registry.Rooms()
}

// Topics returns the number of bus subscriptions held by this process.
func (r *Relay) Topics() int {
	return r.bridge.Topics()
}

func (r *Relay) reject(ctx context.Context, s *Session, err error) {
	r.log.Debug("Rejected frame", "connection_id", s.conn.ID(), "error", err)
	r.send(ctx, s.conn, event.NewError(errors.ToFrameMessage(err)))
}

func (r *Relay) send(ctx context.Context, conn contract.Connection, e event.Outbound) {
	frame, err := event.Encode(e)
	if err != nil {
		r.log.Error("Failed to encode event", "type", e.EventType(), "error", err)
		return
	}
	if err = conn.Send(ctx, frame); err != nil {
		r.log.Debug("Failed to send event", "connection_id", conn.ID(), "type", e.EventType(), "error", err)
	}
}
