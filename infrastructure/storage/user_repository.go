//go:generate go run go.uber.org/mock/mockgen -source=user_repository.go -destination=../../mocks/mock_user_repository.go -package=mocks
package storage

import (
	"chat-service/errors"
	goerrors "errors"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// IUserRepository backs the development identity service.
type IUserRepository interface {
	CreateUser(username, email string) (User, error)
	GetUser(id uuid.UUID) (User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

type User struct {
	ID        uuid.UUID
	Username  string
	Email     string
	CreatedAt time.Time
}

func userKey(id uuid.UUID) []byte {
	return []byte("user:" + id.String())
}

func emailKey(email string) []byte {
	return []byte("user_email:" + strings.ToLower(email))
}

// CreateUser persists a new user and returns it with its generated ID.
// Emails are unique, case-insensitively.
func (r *UserRepository) CreateUser(username, email string) (User, error) {
	user := User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		exists, err := keyExists(txn, emailKey(email))
		if err != nil || exists {
			return conflictOr(err, errors.ErrUserAlreadyExists)
		}
		record, err := encodeUser(user)
		if err != nil {
			return err
		}
		if err = txn.Set(emailKey(email), user.ID[:]); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), record)
	})
	if err != nil {
		return User{}, persistenceError(err)
	}
	return user, nil
}

func (r *UserRepository) GetUser(id uuid.UUID) (User, error) {
	var user User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if goerrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) (err error) {
			user, err = decodeUser(val)
			return err
		})
	})
	if err != nil {
		return User{}, persistenceError(err)
	}
	return user, nil
}
