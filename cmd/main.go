package main

import (
	"chat-service/auth"
	"chat-service/infrastructure/api"
	"chat-service/infrastructure/grpc/client"
	"chat-service/infrastructure/storage"
	"chat-service/internal"
	"chat-service/runtime"
	"chat-service/runtime/workers"
	"chat-service/services"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
)

const shutdownTimeout = 10 * time.Second

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat service terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Shutdown order: stop accepting requests, close live sessions, drain the
// pending message writes, then close the database.
func run() (int, error) {
	var config internal.Config
	if err := internal.Load(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	conn, err := client.Dial(config.IdentityAddr)
	if err != nil {
		return exitRuntime, fmt.Errorf("identity client: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chatRepository := storage.NewChatRepository(db, log)
	messageRepository := storage.NewMessageRepository(db, log)
	verifier := services.NewVerifier(client.NewUserClient(conn, log), config.IdentityTimeout, log)
	chatService := services.NewChatService(chatRepository, verifier, log)
	messageService := services.NewMessageService(messageRepository, chatRepository, config.MaxContentLength, log)

	bridge := runtime.NewPersistenceBridge(log, messageService,
		workers.NewSupervisor(log, config.RestartInterval),
		runtime.PersistenceConfig{
			QueueSize:   config.PersistQueueSize,
			Workers:     config.PersistWorkers,
			Timeout:     config.PersistTimeout,
			MaxAttempts: config.PersistMaxAttempts,
		})
	// The pool outlives the signal context: it is stopped explicitly once
	// the sessions are gone so that no accepted message is dropped.
	bridge.Start(context.Background())

	registry := runtime.NewRegistry()
	dispatcher := runtime.NewDispatcher(registry, log)
	wsHandler := api.NewWSHandler(registry, dispatcher, bridge, runtime.SessionConfig{
		BufferSize:       config.ConnectionBufferSize,
		PongWait:         config.WsPongWait,
		WriteWait:        config.WsWriteWait,
		MaxMessageSize:   config.WsMaxMessageSize,
		MaxContentLength: config.MaxContentLength,
	}, log)

	stats := workers.NewSupervisor(log, config.RestartInterval)
	stats.Add(workers.NewStatsWorker(log, map[string]workers.Gauge{
		"persist_pending": bridge.Pending,
		"live_rooms":      registry.Rooms,
	}, config.StatsInterval))
	go stats.Run(ctx)

	var tokens *auth.TokenManager
	if config.AuthEnabled {
		tokens = auth.NewTokenManager(config.JwtSecret)
	}
	router := api.NewRouter(
		api.NewChatHandler(chatService, log),
		api.NewMessageHandler(messageService, log),
		wsHandler, tokens, log)

	server := &http.Server{
		Addr:              config.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", server.Addr, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case serveErr = <-errChan:
		log.Error("Server failed, shutting down", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	registry.CloseAll()
	wsHandler.Wait()
	bridge.Stop()
	log.Info("Program stopped cleanly")

	if serveErr != nil {
		return exitRuntime, serveErr
	}
	return exitOK, nil
}
