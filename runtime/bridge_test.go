package runtime

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func noopHandler(context.Context, chat.Topic, []byte) {}

func TestBridge_Subscribes_Once_Per_Topic(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockBus(ctrl)
	sub := mocks.NewMockSubscription(ctrl)
	bridge := NewBridge(logs.GetLoggerFromLevel(slog.LevelDebug), bus, noopHandler)
	topic := chat.RoomID("1").Topic()

	// Given the bus accepts exactly one subscription
	bus.EXPECT().Subscribe(gomock.Any(), topic, gomock.Any()).Return(sub, nil).Times(1)

	// When three connections acquire the same topic
	for range 3 {
		req.NoError(bridge.Acquire(ctx, topic))
	}

	// Then only one subscription is held
	req.Equal(1, bridge.Topics())
}

func TestBridge_Unsubscribes_On_Last_Release(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockBus(ctrl)
	sub := mocks.NewMockSubscription(ctrl)
	bridge := NewBridge(logs.GetLoggerFromLevel(slog.LevelDebug), bus, noopHandler)
	topic := chat.RoomID("1").Topic()

	bus.EXPECT().Subscribe(gomock.Any(), topic, gomock.Any()).Return(sub, nil).Times(1)
	req.NoError(bridge.Acquire(ctx, topic))
	req.NoError(bridge.Acquire(ctx, topic))

	// When the first reference is released the subscription stays
	req.NoError(bridge.Release(ctx, topic))
	req.Equal(1, bridge.Topics())

	// When the last reference is released
	sub.EXPECT().Unsubscribe(gomock.Any()).Return(nil).Times(1)
	req.NoError(bridge.Release(ctx, topic))

	// Then the topic is forgotten
	req.Zero(bridge.Topics())
}

func TestBridge_Resubscribes_After_Full_Release(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockBus(ctrl)
	first := mocks.NewMockSubscription(ctrl)
	second := mocks.NewMockSubscription(ctrl)
	bridge := NewBridge(logs.GetLoggerFromLevel(slog.LevelDebug), bus, noopHandler)
	topic := chat.RoomID("1").Topic()

	gomock.InOrder(
		bus.EXPECT().Subscribe(gomock.Any(), topic, gomock.Any()).Return(first, nil),
		first.EXPECT().Unsubscribe(gomock.Any()).Return(nil),
		bus.EXPECT().Subscribe(gomock.Any(), topic, gomock.Any()).Return(second, nil),
	)

	req.NoError(bridge.Acquire(ctx, topic))
	req.NoError(bridge.Release(ctx, topic))
	req.NoError(bridge.Acquire(ctx, topic))
	req.Equal(1, bridge.Topics())
}

func TestBridge_Subscribe_Failure_Takes_No_Reference(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockBus(ctrl)
	sub := mocks.NewMockSubscription(ctrl)
	bridge := NewBridge(logs.GetLoggerFromLevel(slog.LevelDebug), bus, noopHandler)
	topic := chat.RoomID("1").Topic()

	// Given the bus is down for the first call
	gomock.InOrder(
		bus.EXPECT().Subscribe(gomock.Any(), topic, gomock.Any()).Return(nil, fmt.Errorf("connection refused")),
		bus.EXPECT().Subscribe(gomock.Any(), topic, gomock.Any()).Return(sub, nil),
	)

	// When acquiring
	err := bridge.Acquire(ctx, topic)

	// Then the failure is a bus error and nothing is held
	req.ErrorIs(err, errors.ErrBus)
	req.Zero(bridge.Topics())

	// And a later acquire subscribes again
	req.NoError(bridge.Acquire(ctx, topic))
	sub.EXPECT().Unsubscribe(gomock.Any()).Return(nil)
	req.NoError(bridge.Release(ctx, topic))
	req.Zero(bridge.Topics())
}

func TestBridge_Release_Unknown_Topic_Is_Noop(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockBus(ctrl)
	bridge := NewBridge(logs.GetLoggerFromLevel(slog.LevelDebug), bus, noopHandler)

	req.NoError(bridge.Release(context.Background(), chat.RoomID("42").Topic()))
	req.Zero(bridge.Topics())
}

func TestBridge_Unsubscribe_Failure_Still_Forgets_Topic(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockBus(ctrl)
	sub := mocks.NewMockSubscription(ctrl)
	bridge := NewBridge(logs.GetLoggerFromLevel(slog.LevelDebug), bus, noopHandler)
	topic := chat.RoomID("1").Topic()

	bus.EXPECT().Subscribe(gomock.Any(), topic, gomock.Any()).Return(sub, nil)
	sub.EXPECT().Unsubscribe(gomock.Any()).Return(fmt.Errorf("broken pipe"))

	req.NoError(bridge.Acquire(ctx, topic))
	err := bridge.Release(ctx, topic)

	req.ErrorIs(err, errors.ErrBus)
	req.Zero(bridge.Topics())
}

func TestBridge_Publish_Wraps_Bus_Error(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockBus(ctrl)
	bridge := NewBridge(logs.GetLoggerFromLevel(slog.LevelDebug), bus, noopHandler)
	topic := chat.RoomID("1").Topic()

	bus.EXPECT().Publish(gomock.Any(), topic, []byte("payload")).Return(fmt.Errorf("timeout"))

	err := bridge.Publish(context.Background(), topic, []byte("payload"))

	req.ErrorIs(err, errors.ErrBus)
}
