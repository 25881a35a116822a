package event

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncode_Message_Event(t *testing.T) {
	req := require.New(t)
	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)

	raw, err := Encode(NewMessage(chat.Message{ID: 1, RoomID: "1", UserID: "7", Content: "hi", CreatedAt: createdAt}))

	req.NoError(err)
	req.JSONEq(`{"type":"message","id":1,"roomId":1,"userId":7,"content":"hi","createdAt":"2026-01-02T03:04:05.123456789Z"}`, string(raw))
}

func TestEncode_Joined_And_Error(t *testing.T) {
	req := require.New(t)

	raw, err := Encode(NewJoined("general"))
	req.NoError(err)
	req.JSONEq(`{"type":"joined","roomId":"general"}`, string(raw))

	raw, err = Encode(NewError(errors.MsgInvalidJSON))
	req.NoError(err)
	req.JSONEq(`{"type":"error","message":"Invalid JSON payload"}`, string(raw))
}

func TestDecodeInbound(t *testing.T) {
	req := require.New(t)

	in, err := DecodeInbound([]byte(`{"type":"message","roomId":1,"userId":"7","content":"hi","extra":true}`))
	req.NoError(err)
	req.Equal(Inbound{Type: TypeMessage, RoomID: "1", UserID: "7", Content: "hi"}, in)

	_, err = DecodeInbound([]byte(`{"type":`))
	req.ErrorIs(err, errors.ErrMalformedInput)

	_, err = DecodeInbound([]byte(`[]`))
	req.ErrorIs(err, errors.ErrMalformedInput)
}

func TestDecodeMessage_Round_Trip(t *testing.T) {
	req := require.New(t)
	stored := chat.Message{ID: 9, RoomID: "1", UserID: "7", Content: "hi", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	raw, err := Encode(NewMessage(stored))
	req.NoError(err)

	m, err := DecodeMessage(raw)

	req.NoError(err)
	req.Equal(NewMessage(stored), m)
}

func TestDecodeMessage_Rejects_Noise(t *testing.T) {
	payloads := []string{
		`garbage`,
		`{"type":"joined","roomId":"1"}`,
		`{"type":"message","id":0,"roomId":"1","userId":"7","content":"hi","createdAt":"2026-01-01T00:00:00Z"}`,
		`{"type":"message","id":1,"roomId":"","userId":"7","content":"hi","createdAt":"2026-01-01T00:00:00Z"}`,
		`{"type":"message","id":1,"roomId":"1","userId":"7","content":"","createdAt":"2026-01-01T00:00:00Z"}`,
		`{"type":"message","id":1,"roomId":"1","userId":"7","content":"hi"}`,
	}
	for _, raw := range payloads {
		t.Run(raw, func(t *testing.T) {
			_, err := DecodeMessage([]byte(raw))
			require.ErrorIs(t, err, errors.ErrBusDeliveryNoise)
		})
	}
}
