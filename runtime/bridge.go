package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// topicState tracks how many local acquisitions a topic has and its bus subscription.
// refs is guarded by Bridge.mu, sub by topicState.mu which also serializes the bus
// subscribe/unsubscribe calls of this topic.
type topicState struct {
	mu   sync.Mutex
	refs int
	sub  contract.Subscription
}

// Bridge keeps one bus subscription per topic on this process, whatever the number
// of local connections in the room, and drops it when the last one leaves.
type Bridge struct {
	mu      sync.Mutex
	log     *slog.Logger
	bus     contract.Bus
	handler contract.MessageHandler
	topics  map[chat.Topic]*topicState
}

func NewBridge(log *slog.Logger, bus contract.Bus, handler contract.MessageHandler) *Bridge {
	return &Bridge{
		log:     log,
		bus:     bus,
		handler: handler,
		topics:  make(map[chat.Topic]*topicState),
	}
}

// Acquire ensures this process is subscribed to the topic and takes a reference on it.
// On failure the reference is not taken.
func (b *Bridge) Acquire(ctx context.Context, topic chat.Topic) error {
	b.mu.Lock()
	st, ok := b.topics[topic]
	if !ok {
		st = &topicState{}
		b.topics[topic] = st
	}
	st.refs++
	b.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.sub != nil {
		return nil
	}
	sub, err := b.bus.Subscribe(ctx, topic, b.handler)
	if err != nil {
		b.mu.Lock()
		st.refs--
		b.pruneLocked(topic, st)
		b.mu.Unlock()
		return fmt.Errorf("%w: subscribe %s: %v", errors.ErrBus, topic, err)
	}
	st.sub = sub
	b.log.Debug("Subscribed to topic", "topic", topic)
	return nil
}

// Release drops a reference on the topic and unsubscribes when it was the last one.
func (b *Bridge) Release(ctx context.Context, topic chat.Topic) error {
	b.mu.Lock()
	st, ok := b.topics[topic]
	if !ok {
		b.mu.Unlock()
		return nil
	}
	if st.refs > 0 {
		st.refs--
	}
	refs := st.refs
	b.mu.Unlock()

	if refs > 0 {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// An Acquire may have come in while we were waiting for the topic lock.
	b.mu.Lock()
	refs = st.refs
	b.mu.Unlock()
	if refs > 0 || st.sub == nil {
		return nil
	}

	err := st.sub.Unsubscribe(ctx)
	st.sub = nil

	b.mu.Lock()
	b.pruneLocked(topic, st)
	b.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: unsubscribe %s: %v", errors.ErrBus, topic, err)
	}
	b.log.Debug("Unsubscribed from topic", "topic", topic)
	return nil
}

func (b *Bridge) Publish(ctx context.Context, topic chat.Topic, payload []byte) error {
	if err := b.bus.Publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("%w: publish %s: %v", errors.ErrBus, topic, err)
	}
	return nil
}

// Topics returns the number of topics this process currently holds a subscription for.
func (b *Bridge) Topics() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}

// pruneLocked forgets a topic nobody references anymore. Caller holds b.mu and st.mu.
func (b *Bridge) pruneLocked(topic chat.Topic, st *topicState) {
	if st.refs == 0 && st.sub == nil && b.topics[topic] == st {
		delete(b.topics, topic)
	}
}
