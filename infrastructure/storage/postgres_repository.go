package storage

import (
	"chat-relay/domain/chat"
	"context"
	"database/sql"
	_ "embed"
	"log/slog"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

const (
	insertMessage = `INSERT INTO messages (room_id, user_id, content) VALUES ($1, $2, $3) RETURNING id, created_at`
	selectHistory = `SELECT id, room_id, user_id, content, created_at FROM messages
WHERE room_id = $1 AND ($2 = 0 OR id < $2)
ORDER BY id DESC
LIMIT $3`
)

// PostgresMessageRepository stores messages in the messages table.
// Ids come from the BIGSERIAL column, creation times from the database clock.
type PostgresMessageRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenPostgres opens and pings a lib/pq pool.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewPostgresMessageRepository takes ownership of db, Close closes it.
func NewPostgresMessageRepository(db *sql.DB, log *slog.Logger) *PostgresMessageRepository {
	return &PostgresMessageRepository{db: db, log: log}
}

// Migrate creates the messages table when missing.
func (p *PostgresMessageRepository) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *PostgresMessageRepository) Append(ctx context.Context, roomID chat.RoomID, userID chat.UserID, content string) (chat.Message, error) {
	message := chat.Message{RoomID: roomID, UserID: userID, Content: content}
	err := p.db.QueryRowContext(ctx, insertMessage, string(roomID), string(userID), content).
		Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		return chat.Message{}, err
	}
	message.CreatedAt = message.CreatedAt.UTC()
	return message, nil
}

func (p *PostgresMessageRepository) History(ctx context.Context, roomID chat.RoomID, before int64, limit int) ([]chat.Message, error) {
	rows, err := p.db.QueryContext(ctx, selectHistory, string(roomID), before, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var messages []chat.Message
	for rows.Next() {
		var (
			message chat.Message
			room    string
			user    string
		)
		if err = rows.Scan(&message.ID, &room, &user, &message.Content, &message.CreatedAt); err != nil {
			return nil, err
		}
		message.RoomID = chat.RoomID(room)
		message.UserID = chat.UserID(user)
		message.CreatedAt = message.CreatedAt.UTC()
		messages = append(messages, message)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	p.log.Debug("Loaded history", "room_id", roomID, "before", before, "count", len(messages))
	return messages, nil
}

func (p *PostgresMessageRepository) Close() error {
	return p.db.Close()
}
