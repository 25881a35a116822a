package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomID_Topic(t *testing.T) {
	req := require.New(t)

	topic := RoomID("42").Topic()
	req.Equal(Topic("room:42"), topic)

	roomID, ok := topic.RoomID()
	req.True(ok)
	req.Equal(RoomID("42"), roomID)

	_, ok = Topic("presence:42").RoomID()
	req.False(ok)
	_, ok = Topic("room:").RoomID()
	req.False(ok)
}

func TestRoomID_Unmarshal_Accepts_Strings_And_Numbers(t *testing.T) {
	tests := []struct {
		raw      string
		expected RoomID
	}{
		{`"1"`, "1"},
		{`1`, "1"},
		{`"  general "`, "general"},
		{`null`, ""},
		{`""`, ""},
		{`12.5`, "12.5"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			req := require.New(t)
			var roomID RoomID
			req.NoError(json.Unmarshal([]byte(tt.raw), &roomID))
			req.Equal(tt.expected, roomID)
		})
	}
}

func TestRoomID_Unmarshal_Rejects_Other_Types(t *testing.T) {
	req := require.New(t)
	var roomID RoomID

	req.Error(json.Unmarshal([]byte(`{}`), &roomID))
	req.Error(json.Unmarshal([]byte(`[1]`), &roomID))
	req.Error(json.Unmarshal([]byte(`true`), &roomID))
}

func TestIDs_Marshal_Integers_As_Numbers(t *testing.T) {
	req := require.New(t)

	raw, err := json.Marshal(struct {
		Room RoomID `json:"roomId"`
		User UserID `json:"userId"`
	}{"1", "alice"})

	req.NoError(err)
	req.JSONEq(`{"roomId":1,"userId":"alice"}`, string(raw))

	// Non canonical integers keep their exact text
	raw, err = json.Marshal(RoomID("007"))
	req.NoError(err)
	req.Equal(`"007"`, string(raw))
}
