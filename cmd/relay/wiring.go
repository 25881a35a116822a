package main

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/infrastructure/bus"
	"chat-relay/infrastructure/storage"
	"chat-relay/internal"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// receiveLoop is implemented by buses that need a supervised goroutine to dispatch.
type receiveLoop interface {
	Run(ctx context.Context) error
}

func exitCode(err error) int {
	if stderrors.Is(err, errors.ErrUnknownDriver) || stderrors.Is(err, errors.ErrMissingConfigItem) {
		return exitConfig
	}
	return exitRuntime
}

func openStore(ctx context.Context, config internal.Config, logger *slog.Logger) (contract.IMessageRepository, error) {
	switch config.StoreDriver {
	case internal.StoreDriverPostgres:
		dsn, err := config.PostgresDSN()
		if err != nil {
			return nil, err
		}
		db, err := storage.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres connection failed: %w", err)
		}
		repo := storage.NewPostgresMessageRepository(db, logger)
		if err = repo.Migrate(ctx); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("schema migration failed: %w", err)
		}
		return repo, nil
	case internal.StoreDriverBadger:
		options := badger.DefaultOptions(config.BadgerFilepath)
		if logger.Enabled(ctx, slog.LevelDebug) {
			options = options.WithLoggingLevel(badger.DEBUG)
		} else {
			options = options.WithLoggingLevel(badger.WARNING)
		}
		db, err := badger.Open(options)
		if err != nil {
			return nil, fmt.Errorf("database opening failed: %w", err)
		}
		repo, err := storage.NewMessageRepository(db, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("%w: STORE_DRIVER=%q", errors.ErrUnknownDriver, config.StoreDriver)
	}
}

func openBus(ctx context.Context, config internal.Config, logger *slog.Logger) (contract.Bus, error) {
	switch config.BusDriver {
	case internal.BusDriverRedis:
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr()})
		b, err := bus.NewRedisBus(ctx, logger, rdb)
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return b, nil
	case internal.BusDriverNats:
		nc, err := nats.Connect(config.NatsURL,
			nats.Name("chat-relay"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("NATS disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: nats connect: %v", errors.ErrBus, err)
		}
		return bus.NewNatsBus(logger, nc), nil
	case internal.BusDriverMemory:
		logger.Warn("In-memory bus: messages are not shared with other relay processes")
		return bus.NewMemoryBus(), nil
	default:
		return nil, fmt.Errorf("%w: BUS_DRIVER=%q", errors.ErrUnknownDriver, config.BusDriver)
	}
}
