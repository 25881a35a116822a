package bus

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"context"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "chat."

// Characters NATS reserves in subjects are percent-encoded so that any room id maps to
// exactly one subject token.
var subjectEscaper = strings.NewReplacer(
	"%", "%25",
	".", "%2E",
	"*", "%2A",
	">", "%3E",
	" ", "%20",
	"\t", "%09",
	"\r", "%0D",
	"\n", "%0A",
)

// Subject maps a topic to its NATS subject.
func Subject(topic chat.Topic) string {
	return subjectPrefix + subjectEscaper.Replace(string(topic))
}

// NatsBus relies on the NATS client for dispatch: each subscription has its own
// delivery goroutine, so order is kept per topic.
type NatsBus struct {
	log    *slog.Logger
	nc     *nats.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func NewNatsBus(log *slog.Logger, nc *nats.Conn) *NatsBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &NatsBus{log: log, nc: nc, ctx: ctx, cancel: cancel}
}

func (b *NatsBus) Subscribe(_ context.Context, topic chat.Topic, handler contract.MessageHandler) (contract.Subscription, error) {
	sub, err := b.nc.Subscribe(Subject(topic), func(msg *nats.Msg) {
		handler(b.ctx, topic, msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return &natsSubscription{sub: sub}, nil
}

func (b *NatsBus) Publish(_ context.Context, topic chat.Topic, payload []byte) error {
	return b.nc.Publish(Subject(topic), payload)
}

func (b *NatsBus) Close() error {
	b.cancel()
	if err := b.nc.Drain(); err != nil {
		b.log.Warn("NATS drain failed", "error", err)
		b.nc.Close()
	}
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe(_ context.Context) error {
	return s.sub.Unsubscribe()
}
