//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain/chat"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is a non-owning handle on one client channel.
// The transport owns its lifecycle; the relay only sends to it.
type Connection interface {
	ID() string
	Send(ctx context.Context, frame []byte) error
}

type IRegistry interface {
	Add(roomID chat.RoomID, conn Connection) bool
	Remove(roomID chat.RoomID, conn Connection) int
	Members(roomID chat.RoomID) []Connection
	Count(roomID chat.RoomID) int
	Rooms() int
}

// IMessageRepository is the persistent store of messages.
type IMessageRepository interface {
	Append(ctx context.Context, roomID chat.RoomID, userID chat.UserID, content string) (chat.Message, error)
	History(ctx context.Context, roomID chat.RoomID, before int64, limit int) ([]chat.Message, error)
	Close() error
}

// MessageHandler receives every payload published on a subscribed topic.
type MessageHandler func(ctx context.Context, topic chat.Topic, payload []byte)

// Bus is the topic based publish/subscribe channel shared by all relay processes.
type Bus interface {
	Subscribe(ctx context.Context, topic chat.Topic, handler MessageHandler) (Subscription, error)
	Publish(ctx context.Context, topic chat.Topic, payload []byte) error
	Close() error
}

type Subscription interface {
	Unsubscribe(ctx context.Context) error
}
