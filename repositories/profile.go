package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"groupmeet/domain"
)

type ProfileRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewProfileRepository(db *badger.DB, log *slog.Logger) ProfileRepository {
	return ProfileRepository{db: db, log: log}
}

type diskProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio"`
	Topics    []string  `json:"topics"`
	CreatedAt time.Time `json:"created_at"`
}

func profileKey(id string) []byte { return []byte("profile:" + id) }

// GetByIDs is a filtered select: ids without a profile row are simply
// absent from the result. A missing profile is an expected condition
// (the caller falls back to a derived display name), never an error.
func (r ProfileRepository) GetByIDs(_ context.Context, ids []string) ([]domain.UserProfile, error) {
	var profiles []domain.UserProfile
	err := r.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(profileKey(id))
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var disk diskProfile
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			})
			if err != nil {
				return err
			}
			profiles = append(profiles, domain.UserProfile{
				ID:        disk.ID,
				Name:      disk.Name,
				Bio:       disk.Bio,
				Topics:    disk.Topics,
				CreatedAt: disk.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return profiles, nil
}

func (r ProfileRepository) Upsert(_ context.Context, profile domain.UserProfile) error {
	data, err := json.Marshal(diskProfile{
		ID:        profile.ID,
		Name:      profile.Name,
		Bio:       profile.Bio,
		Topics:    profile.Topics,
		CreatedAt: profile.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(profileKey(profile.ID), data)
	})
	return classify(err)
}
