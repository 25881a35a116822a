package bus

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus multiplexes every topic of the process on a single Redis PUBSUB
// connection. Topics are used verbatim as channel names.
// Run must be started for handlers to be called.
type RedisBus struct {
	log *slog.Logger
	rdb *redis.Client
	ps  *redis.PubSub

	mu       sync.RWMutex
	handlers map[chat.Topic]map[uint64]contract.MessageHandler
	nextID   uint64
}

func NewRedisBus(ctx context.Context, log *slog.Logger, rdb *redis.Client) (*RedisBus, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: redis ping: %v", errors.ErrBus, err)
	}
	return &RedisBus{
		log:      log,
		rdb:      rdb,
		ps:       rdb.Subscribe(ctx),
		handlers: make(map[chat.Topic]map[uint64]contract.MessageHandler),
	}, nil
}

func (b *RedisBus) Subscribe(ctx context.Context, topic chat.Topic, handler contract.MessageHandler) (contract.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.handlers[topic]) == 0 {
		if err := b.ps.Subscribe(ctx, string(topic)); err != nil {
			return nil, err
		}
		b.handlers[topic] = make(map[uint64]contract.MessageHandler)
	}
	b.nextID++
	id := b.nextID
	b.handlers[topic][id] = handler
	return &redisSubscription{bus: b, topic: topic, id: id}, nil
}

func (b *RedisBus) Publish(ctx context.Context, topic chat.Topic, payload []byte) error {
	return b.rdb.Publish(ctx, string(topic), payload).Err()
}

// Run is the receive loop. It returns nil once ctx is done or the bus closed,
// and the receive error otherwise so that the supervisor restarts it.
func (b *RedisBus) Run(ctx context.Context) error {
	for {
		msg, err := b.ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, redis.ErrClosed) {
				return nil
			}
			b.log.Warn("Redis receive failed", "error", err)
			return fmt.Errorf("%w: receive: %v", errors.ErrBus, err)
		}
		b.dispatch(ctx, chat.Topic(msg.Channel), []byte(msg.Payload))
	}
}

func (b *RedisBus) dispatch(ctx context.Context, topic chat.Topic, payload []byte) {
	b.mu.RLock()
	handlers := make([]contract.MessageHandler, 0, len(b.handlers[topic]))
	for _, h := range b.handlers[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("Message on a topic without handler", "topic", topic)
		return
	}
	for _, h := range handlers {
		h(ctx, topic, payload)
	}
}

func (b *RedisBus) Close() error {
	psErr := b.ps.Close()
	rdbErr := b.rdb.Close()
	return stderrors.Join(psErr, rdbErr)
}

type redisSubscription struct {
	bus   *RedisBus
	topic chat.Topic
	id    uint64
}

func (s *redisSubscription) Unsubscribe(ctx context.Context) error {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers, ok := b.handlers[s.topic]
	if !ok {
		return nil
	}
	delete(handlers, s.id)
	if len(handlers) > 0 {
		return nil
	}
	delete(b.handlers, s.topic)
	return b.ps.Unsubscribe(ctx, string(s.topic))
}
