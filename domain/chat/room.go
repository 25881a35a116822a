// Package chat contains the core concepts of the relay: rooms, users and messages.
// No runtime, network or storage logic should be added here.
package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const topicPrefix = "room:"

// RoomID is an opaque room key. On the wire it may be a JSON string or an integer.
type RoomID string

// Topic is the Broadcast Bus topic a room is published on.
type Topic string

// Topic derives the bus topic of the room: "room:<id>".
func (r RoomID) Topic() Topic {
	return Topic(topicPrefix + string(r))
}

func (r RoomID) String() string { return string(r) }

func (r RoomID) MarshalJSON() ([]byte, error) { return marshalID(string(r)) }

func (r *RoomID) UnmarshalJSON(data []byte) error {
	s, err := unmarshalID(data)
	if err != nil {
		return fmt.Errorf("roomId: %w", err)
	}
	*r = RoomID(s)
	return nil
}

// RoomID returns the room a topic belongs to, false when the topic is not a room topic.
func (t Topic) RoomID() (RoomID, bool) {
	id, ok := strings.CutPrefix(string(t), topicPrefix)
	if !ok || id == "" {
		return "", false
	}
	return RoomID(id), true
}

func (t Topic) String() string { return string(t) }

// marshalID writes canonical integers as JSON numbers and everything else as strings,
// so numeric keys keep the shape clients already expect ("roomId":1).
func marshalID(s string) ([]byte, error) {
	if isCanonicalInt(s) {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func unmarshalID(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", data)
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

func isCanonicalInt(s string) bool {
	if s == "" {
		return false
	}
	i, err := strconv.ParseInt(s, 10, 64)
	return err == nil && strconv.FormatInt(i, 10) == s
}
