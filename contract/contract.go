//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-service/domain/chat"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker is a long-running loop owned by a supervisor.
// It does not protect itself against panics.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName returns the type name of the worker, used in supervision logs.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// SessionSink is the outbound side of one live connection.
// Deliver never blocks: false means the frame was not queued.
type SessionSink interface {
	ID() string
	UserID() uuid.UUID
	Deliver(frame []byte) bool
	Close()
}

// IRegistry tracks which sessions are attached to which chat room.
type IRegistry interface {
	Join(room uuid.UUID, sink SessionSink)
	Leave(room uuid.UUID, sink SessionSink)
	Snapshot(room uuid.UUID) []SessionSink
}

// IDispatcher fans an accepted message out to the peers of its author.
type IDispatcher interface {
	Broadcast(origin SessionSink, cmd chat.PostMessageCommand) int
}

// IPersistenceBridge accepts messages for durable storage without blocking.
type IPersistenceBridge interface {
	Submit(cmd chat.PostMessageCommand)
}

// IMessageWriter stores one message and returns it with its store-assigned fields.
type IMessageWriter interface {
	CreateMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error)
}

// IUserDirectory looks users up in the identity service.
type IUserDirectory interface {
	GetUser(ctx context.Context, userID uuid.UUID) (chat.UserIdentity, error)
}

type IChatRepository interface {
	CreateChat(ctx context.Context, c chat.Chat, participants []chat.Participant) error
	GetChat(ctx context.Context, chatID uuid.UUID) (chat.Chat, error)
	ListUserChats(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error)
	AddParticipant(ctx context.Context, participant chat.Participant) error
	RemoveParticipant(ctx context.Context, chatID, userID uuid.UUID) error
	ListParticipants(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error)
}

type IMessageRepository interface {
	IMessageWriter
	ListMessages(ctx context.Context, chatID uuid.UUID) ([]chat.Message, error)
}
