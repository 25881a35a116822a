package storage

import (
	"chat-relay/domain/chat"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	sequenceKey       = "seq:messages"
	sequenceBandwidth = 100
	// Wide enough for any uint64 so keys of a room sort by id.
	idWidth = 20
)

// MessageRepository stores messages in BadgerDB.
// Keys are "msg:{len(room)}:{room}:{id padded to 20 digits}": the length keeps the room prefix
// unambiguous for ids containing ':' and the padding gives lexicographic order by id.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	seq *badger.Sequence
}

// NewMessageRepository takes ownership of db, Close closes it.
// A read-only db gives a repository that can only serve History.
func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	repo := &MessageRepository{db: db, log: log}
	if db.Opts().ReadOnly {
		return repo, nil
	}
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, err
	}
	repo.seq = seq
	return repo, nil
}

type diskMessage struct {
	ID      int64  `json:"id"`
	Room    string `json:"room"`
	Author  string `json:"author"`
	Content string `json:"content"`
	At      int64  `json:"at"`
}

func roomPrefix(roomID chat.RoomID) string {
	return fmt.Sprintf("msg:%d:%s:", len(roomID), roomID)
}

func messageKey(roomID chat.RoomID, id int64) []byte {
	return []byte(fmt.Sprintf("%s%0*d", roomPrefix(roomID), idWidth, id))
}

// Append assigns the next id of the shared sequence and the creation time, then persists.
func (m *MessageRepository) Append(_ context.Context, roomID chat.RoomID, userID chat.UserID, content string) (chat.Message, error) {
	if m.seq == nil {
		return chat.Message{}, fmt.Errorf("message repository is read-only")
	}
	next, err := m.seq.Next()
	if err != nil {
		return chat.Message{}, err
	}
	// Badger sequences start at 0, ids start at 1.
	message := chat.Message{
		ID:        int64(next) + 1,
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return chat.Message{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(roomID, message.ID), bytes)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// History scans the room prefix backwards from before (exclusive, 0 means newest)
// and stops after limit messages.
func (m *MessageRepository) History(_ context.Context, roomID chat.RoomID, before int64, limit int) ([]chat.Message, error) {
	var messages []chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomPrefix(roomID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch {
		case before > 0:
			seekKey = messageKey(roomID, before-1)
		default:
			seekKey = append(prefix, []byte(strings.Repeat("9", idWidth))...)
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var dm diskMessage
				if err := json.Unmarshal(value, &dm); err != nil {
					return err
				}
				messages = append(messages, dm.toMessage())
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Debug("Loaded history", "room_id", roomID, "before", before, "count", len(messages))
	return messages, nil
}

func (m *MessageRepository) Close() error {
	if m.seq != nil {
		if err := m.seq.Release(); err != nil {
			m.log.Warn("Failed to release message sequence", "error", err)
		}
	}
	return m.db.Close()
}

func fromMessage(message chat.Message) diskMessage {
	return diskMessage{
		ID:      message.ID,
		Room:    string(message.RoomID),
		Author:  string(message.UserID),
		Content: message.Content,
		At:      message.CreatedAt.UnixNano(),
	}
}

func (dm diskMessage) toMessage() chat.Message {
	return chat.Message{
		ID:        dm.ID,
		RoomID:    chat.RoomID(dm.Room),
		UserID:    chat.UserID(dm.Author),
		Content:   dm.Content,
		CreatedAt: time.Unix(0, dm.At).UTC(),
	}
}
