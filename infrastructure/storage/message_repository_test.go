package storage

import (
	"chat-relay/domain/chat"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newBadgerRepository(t *testing.T) *MessageRepository {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	repo, err := NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestMessageRepository_Append_Assigns_Increasing_Ids(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newBadgerRepository(t)

	// When storing two messages in different rooms
	first, err := repo.Append(ctx, "1", "7", "hi")
	req.NoError(err)
	second, err := repo.Append(ctx, "2", "8", "hello")
	req.NoError(err)

	// Then ids start at 1 and are shared across rooms
	req.Equal(int64(1), first.ID)
	req.Equal(int64(2), second.ID)
	req.Equal(chat.RoomID("1"), first.RoomID)
	req.Equal(chat.UserID("7"), first.UserID)
	req.Equal("hi", first.Content)
	req.False(first.CreatedAt.IsZero())
	req.False(second.CreatedAt.Before(first.CreatedAt))
}

func TestMessageRepository_History_Newest_First(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newBadgerRepository(t)

	var stored []chat.Message
	for i := 1; i <= 3; i++ {
		m, err := repo.Append(ctx, "1", chat.UserID(fmt.Sprint(i)), fmt.Sprintf("message %d", i))
		req.NoError(err)
		stored = append(stored, m)
	}

	messages, err := repo.History(ctx, "1", 0, 50)

	req.NoError(err)
	req.Equal([]chat.Message{stored[2], stored[1], stored[0]}, messages)
}

func TestMessageRepository_History_Pagination(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newBadgerRepository(t)
	room := chat.RoomID("42")

	for i := 1; i <= 10; i++ {
		_, err := repo.Append(ctx, room, chat.UserID(fmt.Sprintf("user_%d", i)), fmt.Sprintf("Message %d", i))
		req.NoError(err)
	}

	// Page 1
	page1, err := repo.History(ctx, room, 0, 4)
	req.NoError(err)
	req.Len(page1, 4)
	req.Equal(chat.UserID("user_10"), page1[0].UserID)
	req.Equal(chat.UserID("user_7"), page1[3].UserID)

	// Page 2 starts right below the last id, no duplicate
	page2, err := repo.History(ctx, room, page1[3].ID, 4)
	req.NoError(err)
	req.Len(page2, 4)
	req.Equal(chat.UserID("user_6"), page2[0].UserID)
	req.Equal(chat.UserID("user_3"), page2[3].UserID)

	// Page 3 is the tail
	page3, err := repo.History(ctx, room, page2[3].ID, 4)
	req.NoError(err)
	req.Len(page3, 2)
	req.Equal(chat.UserID("user_1"), page3[1].UserID)

	page4, err := repo.History(ctx, room, page3[1].ID, 4)
	req.NoError(err)
	req.Empty(page4)
}

func TestMessageRepository_Rooms_Do_Not_Overlap(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newBadgerRepository(t)

	// Given a room id that is a prefix of another one once ':' is involved
	_, err := repo.Append(ctx, "a", "7", "in a")
	req.NoError(err)
	_, err = repo.Append(ctx, "a:b", "7", "in a:b")
	req.NoError(err)

	messages, err := repo.History(ctx, "a", 0, 50)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("in a", messages[0].Content)

	messages, err = repo.History(ctx, "unknown", 0, 50)
	req.NoError(err)
	req.Empty(messages)
}

func TestMessageRepository_Sequence_Survives_Reopen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	repo, err := NewMessageRepository(db, log)
	req.NoError(err)
	first, err := repo.Append(ctx, "1", "7", "before restart")
	req.NoError(err)
	req.NoError(repo.Close())

	db, err = badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	repo, err = NewMessageRepository(db, log)
	req.NoError(err)
	defer func() { _ = repo.Close() }()

	second, err := repo.Append(ctx, "1", "7", "after restart")
	req.NoError(err)
	req.Greater(second.ID, first.ID)

	messages, err := repo.History(ctx, "1", 0, 50)
	req.NoError(err)
	req.Len(messages, 2)
}
