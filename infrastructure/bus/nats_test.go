package bus

import (
	"chat-relay/domain/chat"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func TestSubject_Escapes_Reserved_Characters(t *testing.T) {
	req := require.New(t)

	req.Equal("chat.room:1", Subject(chat.RoomID("1").Topic()))
	req.Equal("chat.room:a%2Eb%2A%3E", Subject(chat.RoomID("a.b*>").Topic()))
	req.Equal("chat.room:x%20y%25", Subject(chat.RoomID("x y%").Topic()))
}

func TestNatsBus_Delivers_Across_Connections(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	pubConn, err := nats.Connect(url)
	req.NoError(err)
	subConn, err := nats.Connect(url)
	req.NoError(err)
	publisher := NewNatsBus(log, pubConn)
	subscriber := NewNatsBus(log, subConn)
	defer func() { _ = publisher.Close() }()
	defer func() { _ = subscriber.Close() }()

	topic := chat.RoomID("nats.test").Topic()
	rec := &recorder{}
	sub, err := subscriber.Subscribe(ctx, topic, rec.handle)
	req.NoError(err)
	req.NoError(subConn.Flush())

	req.NoError(publisher.Publish(ctx, topic, []byte("hello")))

	req.Eventually(func() bool { return len(rec.received()) == 1 }, 5*time.Second, 20*time.Millisecond)
	req.NoError(sub.Unsubscribe(ctx))
}
