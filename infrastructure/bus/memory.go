// Package bus holds the Broadcast Bus implementations: Redis and NATS for
// multi-process deployments, an in-memory one for a single process and tests.
package bus

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"fmt"
	"sync"
)

// MemoryBus delivers synchronously to every handler of the topic, in the
// publisher's goroutine. Only processes sharing the same instance see each other.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[chat.Topic]map[uint64]contract.MessageHandler
	nextID   uint64
	closed   bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[chat.Topic]map[uint64]contract.MessageHandler)}
}

func (b *MemoryBus) Subscribe(_ context.Context, topic chat.Topic, handler contract.MessageHandler) (contract.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("%w: memory bus", errors.ErrConnectionClosed)
	}
	b.nextID++
	id := b.nextID
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[uint64]contract.MessageHandler)
	}
	b.handlers[topic][id] = handler
	return &memorySubscription{bus: b, topic: topic, id: id}, nil
}

func (b *MemoryBus) Publish(ctx context.Context, topic chat.Topic, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("%w: memory bus", errors.ErrConnectionClosed)
	}
	handlers := make([]contract.MessageHandler, 0, len(b.handlers[topic]))
	for _, h := range b.handlers[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, topic, payload)
	}
	return nil
}

// Subscribers returns the number of live subscriptions on a topic.
func (b *MemoryBus) Subscribers(topic chat.Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	clear(b.handlers)
	return nil
}

type memorySubscription struct {
	bus   *MemoryBus
	topic chat.Topic
	id    uint64
}

func (s *memorySubscription) Unsubscribe(_ context.Context) error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	handlers := s.bus.handlers[s.topic]
	delete(handlers, s.id)
	if len(handlers) == 0 {
		delete(s.bus.handlers, s.topic)
	}
	return nil
}
