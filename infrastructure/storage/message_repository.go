package storage

import (
	"chat-service/contract"
	"chat-service/domain/chat"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var _ contract.IMessageRepository = (*MessageRepository)(nil)

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func messagePrefix(chatID uuid.UUID) []byte {
	return []byte("msg:" + chatID.String() + ":")
}

// messageKey is "msg:{chat_id}:{created_at_nanos}:{message_id}". The 19-digit
// padding keeps the keys of a chat in chronological order, the message id
// separates two messages stored in the same nanosecond.
func messageKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.ChatID, m.CreatedAt.UnixNano(), m.ID))
}

// CreateMessage assigns the id and the timestamp, then stores the message if
// its chat exists.
func (r *MessageRepository) CreateMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, persistenceError(err)
	}
	m := chat.Message{
		ID:        uuid.New(),
		ChatID:    cmd.ChatID,
		AuthorID:  cmd.AuthorID,
		Content:   cmd.Content,
		CreatedAt: r.now(),
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := getChat(txn, m.ChatID); err != nil {
			return err
		}
		record, err := encodeMessage(m)
		if err != nil {
			return err
		}
		return txn.Set(messageKey(m), record)
	})
	if err != nil {
		return chat.Message{}, persistenceError(err)
	}
	return m, nil
}

// ListMessages scans the chat prefix forward, which yields the oldest message first.
func (r *MessageRepository) ListMessages(ctx context.Context, chatID uuid.UUID) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, persistenceError(err)
	}
	messages := []chat.Message{}
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(chatID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				m, err := decodeMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, persistenceError(err)
	}
	return messages, nil
}
