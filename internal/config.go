package internal

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	IdentityAddr    string        `env:"IDENTITY_ADDR,default=localhost:50052"`
	IdentityTimeout time.Duration `env:"IDENTITY_TIMEOUT,default=3s"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=5000"`
	WsPongWait           time.Duration `env:"WS_PONG_WAIT,default=60s"`
	WsWriteWait          time.Duration `env:"WS_WRITE_WAIT,default=10s"`
	WsMaxMessageSize     int64         `env:"WS_MAX_MESSAGE_SIZE,default=65536"`

	PersistQueueSize   int           `env:"PERSIST_QUEUE_SIZE,default=1024"`
	PersistWorkers     int           `env:"PERSIST_WORKERS,default=4"`
	PersistTimeout     time.Duration `env:"PERSIST_TIMEOUT,default=5s"`
	PersistMaxAttempts int           `env:"PERSIST_MAX_ATTEMPTS,default=1"`
	RestartInterval    time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	StatsInterval      time.Duration `env:"STATS_INTERVAL,default=30s"`

	AuthEnabled bool   `env:"AUTH_ENABLED,default=false"`
	JwtSecret   string `env:"JWT_SECRET"`
}

// IdentityConfig drives the development identity service in cmd/identity.
type IdentityConfig struct {
	Port           int    `env:"IDENTITY_PORT,default=50052"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath string `env:"IDENTITY_BADGER_FILEPATH,required=true"`
}

// Load reads an optional .env file then fills cfg from the environment.
func Load(cfg any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	if c.AuthEnabled && c.JwtSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set when AUTH_ENABLED is true")
	}
	if c.PersistWorkers < 1 {
		return fmt.Errorf("PERSIST_WORKERS must be at least 1, got %d", c.PersistWorkers)
	}
	if c.PersistMaxAttempts < 1 {
		return fmt.Errorf("PERSIST_MAX_ATTEMPTS must be at least 1, got %d", c.PersistMaxAttempts)
	}
	if c.ConnectionBufferSize < 1 {
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be at least 1, got %d", c.ConnectionBufferSize)
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
