//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"groupmeet/errors"
)

// IUserRepository is the account store behind the identity provider.
// The email lookup by id doubles as the privileged directory function
// used when listing group members.
type IUserRepository interface {
	CreateUser(ctx context.Context, email, hashedPassword string) (string, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	EmailByID(ctx context.Context, userID string) (string, error)
}

type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) UserRepository {
	return UserRepository{db: db, log: log}
}

// User is the repository-level account representation.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type diskUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

func userKey(email string) []byte   { return []byte("user:" + email) }
func emailKey(userID string) []byte { return []byte("useremail:" + userID) }

// CreateUser persists an account keyed by email, plus an id->email index
// entry for the directory lookup. A taken email fails with
// ErrUserAlreadyExists.
func (r UserRepository) CreateUser(_ context.Context, email, hashedPassword string) (string, error) {
	newID := uuid.New().String()
	data, err := json.Marshal(diskUser{
		ID:           newID,
		Email:        email,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal user: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		key := userKey(email)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(emailKey(newID), []byte(email))
	})
	if err != nil {
		return "", classify(err)
	}
	return newID, nil
}

func (r UserRepository) GetUserByEmail(_ context.Context, email string) (User, error) {
	var disk diskUser
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return User{}, errors.ErrInvalidCredentials
		}
		return User{}, classify(err)
	}
	return User{
		ID:           disk.ID,
		Email:        disk.Email,
		PasswordHash: disk.PasswordHash,
		CreatedAt:    time.Unix(disk.CreatedAt, 0).UTC(),
	}, nil
}

// EmailByID resolves a user id to its email via the index entry.
func (r UserRepository) EmailByID(_ context.Context, userID string) (string, error) {
	var email string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			email = string(val)
			return nil
		})
	})
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return "", errors.ErrUserNotFound
		}
		return "", classify(err)
	}
	return email, nil
}
