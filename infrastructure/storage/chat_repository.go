package storage

import (
	"bytes"
	"chat-service/contract"
	"chat-service/domain/chat"
	"chat-service/errors"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var _ contract.IChatRepository = (*ChatRepository)(nil)

// ChatRepository stores chats and memberships in BadgerDB.
//
// Layout:
//
//	chat:{chat_id}                  -> chat record
//	member:{chat_id}:{user_id}      -> participant record
//	user_chats:{user_id}:{chat_id}  -> empty, reverse index for ListUserChats
type ChatRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChatRepository(db *badger.DB, log *slog.Logger) *ChatRepository {
	return &ChatRepository{db: db, log: log}
}

func chatKey(chatID uuid.UUID) []byte {
	return []byte("chat:" + chatID.String())
}

func memberPrefix(chatID uuid.UUID) []byte {
	return []byte("member:" + chatID.String() + ":")
}

func memberKey(chatID, userID uuid.UUID) []byte {
	return append(memberPrefix(chatID), userID.String()...)
}

func userChatsPrefix(userID uuid.UUID) []byte {
	return []byte("user_chats:" + userID.String() + ":")
}

func userChatsKey(userID, chatID uuid.UUID) []byte {
	return append(userChatsPrefix(userID), chatID.String()...)
}

// CreateChat writes the chat and every membership in a single transaction.
// Nothing is committed if any write fails.
func (r *ChatRepository) CreateChat(ctx context.Context, c chat.Chat, participants []chat.Participant) error {
	if err := ctx.Err(); err != nil {
		return persistenceError(err)
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, chatKey(c.ID)); err != nil || exists {
			return conflictOr(err, errors.ErrChatAlreadyExists)
		}
		record, err := encodeChat(c)
		if err != nil {
			return err
		}
		if err = txn.Set(chatKey(c.ID), record); err != nil {
			return err
		}
		for i, p := range participants {
			if p.ChatID != c.ID {
				return fmt.Errorf("%w: participant %s does not belong to chat %s",
					errors.ErrValidation, p.UserID, c.ID)
			}
			if err = setMember(txn, member{Participant: p, Ordinal: uint32(i)}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Debug("Chat transaction rolled back", "chat_id", c.ID, "error", err)
		return persistenceError(err)
	}
	return nil
}

func (r *ChatRepository) GetChat(ctx context.Context, chatID uuid.UUID) (chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return chat.Chat{}, persistenceError(err)
	}
	var c chat.Chat
	err := r.db.View(func(txn *badger.Txn) (err error) {
		c, err = getChat(txn, chatID)
		return err
	})
	if err != nil {
		return chat.Chat{}, persistenceError(err)
	}
	return c, nil
}

// ListUserChats returns the chats a user belongs to, oldest first.
func (r *ChatRepository) ListUserChats(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return nil, persistenceError(err)
	}
	chats := []chat.Chat{}
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := userChatsPrefix(userID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			chatID, err := uuid.ParseBytes(it.Item().Key()[len(prefix):])
			if err != nil {
				return decodeError("user chat index", err)
			}
			c, err := getChat(txn, chatID)
			if goerrors.Is(err, errors.ErrChatNotFound) {
				r.log.Warn("Dangling chat index entry", "user_id", userID, "chat_id", chatID)
				continue
			}
			if err != nil {
				return err
			}
			chats = append(chats, c)
		}
		return nil
	})
	if err != nil {
		return nil, persistenceError(err)
	}
	sort.Slice(chats, func(i, j int) bool {
		if chats[i].CreatedAt.Equal(chats[j].CreatedAt) {
			return bytes.Compare(chats[i].ID[:], chats[j].ID[:]) < 0
		}
		return chats[i].CreatedAt.Before(chats[j].CreatedAt)
	})
	return chats, nil
}

func (r *ChatRepository) AddParticipant(ctx context.Context, participant chat.Participant) error {
	if err := ctx.Err(); err != nil {
		return persistenceError(err)
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := getChat(txn, participant.ChatID); err != nil {
			return err
		}
		return setMember(txn, member{Participant: participant})
	})
	return persistenceError(err)
}

func (r *ChatRepository) RemoveParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return persistenceError(err)
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := getChat(txn, chatID); err != nil {
			return err
		}
		exists, err := keyExists(txn, memberKey(chatID, userID))
		if err != nil {
			return err
		}
		if !exists {
			return errors.ErrParticipantNotFound
		}
		if err = txn.Delete(memberKey(chatID, userID)); err != nil {
			return err
		}
		return txn.Delete(userChatsKey(userID, chatID))
	})
	return persistenceError(err)
}

// ListParticipants returns the members of a chat in the order they joined.
func (r *ChatRepository) ListParticipants(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, persistenceError(err)
	}
	var members []member
	err := r.db.View(func(txn *badger.Txn) error {
		if _, err := getChat(txn, chatID); err != nil {
			return err
		}
		prefix := memberPrefix(chatID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				m, err := decodeParticipant(val)
				if err != nil {
					return err
				}
				members = append(members, m)
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

	// Members created together share JoinedAt, their ordinal keeps the
	// order of the creating request.
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].Ordinal < members[j].Ordinal
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func getChat(txn *badger.Txn, chatID uuid.UUID) (chat.Chat, error) {
	item, err := txn.Get(chatKey(chatID))
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Chat{}, errors.ErrChatNotFound
	}
	if err != nil {
		return chat.Chat{}, err
	}
	var c chat.Chat
	err = item.Value(func(val []byte) (err error) {
		c, err = decodeChat(val)
		return err
	})
	return c, err
}

func setMember(txn *badger.Txn, m member) error {
	key := memberKey(m.ChatID, m.UserID)
	exists, err := keyExists(txn, key)
	if err != nil || exists {
		return conflictOr(err, errors.ErrAlreadyMember)
	}
	record, err := encodeParticipant(m)
	if err != nil {
		return err
	}
	if err = txn.Set(key, record); err != nil {
		return err
	}
	p := m.Participant
	return txn.Set(userChatsKey(p.UserID, p.ChatID), nil)
}

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case goerrors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

func conflictOr(err, conflict error) error {
	if err != nil {
		return err
	}
	return conflict
}

// persistenceError leaves errors of the taxonomy untouched and files every
// other storage failure under ErrPersistence.
func persistenceError(err error) error {
	switch {
	case err == nil:
		return nil
	case goerrors.Is(err, errors.ErrPersistence),
		goerrors.Is(err, errors.ErrNotFound),
		goerrors.Is(err, errors.ErrConflict),
		goerrors.Is(err, errors.ErrValidation):
		return err
	default:
		return fmt.Errorf("%w: %w", errors.ErrPersistence, err)
	}
}
