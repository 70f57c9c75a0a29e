// Command identity is a development stand-in for the user service: it answers
// GetUserByUid lookups from its own Badger store.
package main

import (
	"chat-service/errors"
	"chat-service/infrastructure/grpc/identity"
	"chat-service/infrastructure/grpc/server"
	"chat-service/infrastructure/storage"
	"chat-service/internal"
	"context"
	goerrors "errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	grpc3 "github.com/mama165/sdk-go/grpc"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Identity service terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// -seed alice:alice@example.com,bob:bob@example.com
	seed := flag.String("seed", "", "comma-separated username:email pairs to create before serving")
	flag.Parse()

	var config internal.IdentityConfig
	if err := internal.Load(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() { _ = db.Close() }()

	users := storage.NewUserRepository(db)
	if err = seedUsers(users, *seed, func(u storage.User) {
		logger.Info("User created", "user_id", u.ID, "username", u.Username, "email", u.Email)
	}); err != nil {
		return exitConfig, err
	}

	address := fmt.Sprintf("0.0.0.0:%d", config.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(logger)))
	identity.RegisterUserServiceServer(s, server.NewUserServer(users, logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting identity gRPC server", "address", address)
		if err := s.Serve(listener); err != nil && !goerrors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
		s.GracefulStop()
		return exitOK, nil
	case err = <-errChan:
		return exitRuntime, err
	}
}

func seedUsers(users storage.IUserRepository, seed string, created func(storage.User)) error {
	if strings.TrimSpace(seed) == "" {
		return nil
	}
	for _, pair := range strings.Split(seed, ",") {
		username, email, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || username == "" || email == "" {
			return fmt.Errorf("invalid seed entry %q, expected username:email", pair)
		}
		user, err := users.CreateUser(username, email)
		if goerrors.Is(err, errors.ErrUserAlreadyExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seeding %s: %w", email, err)
		}
		created(user)
	}
	return nil
}
