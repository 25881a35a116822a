package main

import (
	"chat-relay/infrastructure/httpserver"
	"chat-relay/internal"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the store, the bus and the relay, serves until SIGINT/SIGTERM and closes
// everything in reverse order.
func run() (int, error) {
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, config, logger)
	if err != nil {
		return exitCode(err), fmt.Errorf("store: %w", err)
	}
	defer func() {
		logger.Info("Closing message store...")
		_ = store.Close()
	}()

	bus, err := openBus(ctx, config, logger)
	if err != nil {
		return exitCode(err), fmt.Errorf("bus: %w", err)
	}
	defer func() {
		logger.Info("Closing broadcast bus...")
		_ = bus.Close()
	}()

	relay := runtime.NewRelay(logger, runtime.NewRegistry(), bus, store, config.MaxContentLength)

	heartbeat, err := workers.NewHeartbeatWorker(logger, relay, config.HeartbeatInterval)
	if err != nil {
		return exitRuntime, fmt.Errorf("heartbeat: %w", err)
	}

	server := httpserver.NewServer(logger, httpserver.Options{
		Addr:            config.Addr(),
		BufferSize:      config.ConnectionBufferSize,
		MaxMessageSize:  int64(config.MaxMessageSize),
		AllowedOrigins:  config.Origins(),
		JwtSecret:       []byte(config.JwtSecret),
		HistoryLimit:    config.HistoryLimit,
		ShutdownTimeout: config.ShutdownTimeout,
	}, relay, heartbeat)
	if err = server.Listen(); err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", config.Addr(), err)
	}

	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(server, heartbeat)
	if receiver, ok := bus.(receiveLoop); ok {
		sup.Add(receiver)
	}

	logger.Info("Starting relay",
		"addr", config.Addr(),
		"store_driver", config.StoreDriver,
		"bus_driver", config.BusDriver)

	// Blocks until the signal context is cancelled and every worker returned.
	sup.Run(ctx)

	logger.Info("Relay stopped cleanly")
	return exitOK, nil
}
