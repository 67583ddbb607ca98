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
	"groupmeet/errors"
)

type MembershipRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMembershipRepository(db *badger.DB, log *slog.Logger) MembershipRepository {
	return MembershipRepository{db: db, log: log}
}

type diskMembership struct {
	GroupID   string `json:"group_id"`
	UserID    string `json:"user_id"`
	IsCreator bool   `json:"is_creator"`
	JoinedAt  int64  `json:"joined_at"` // unix seconds UTC
}

// Memberships are stored twice, keyed by group and by user, so both
// listings are single prefix scans.
func memberKey(groupID, userID string) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", groupID, userID))
}

func userGroupKey(userID, groupID string) []byte {
	return []byte(fmt.Sprintf("usergroup:%s:%s", userID, groupID))
}

// Insert enforces (group, user) uniqueness inside the transaction.
// A duplicate fails with ErrMembershipConflict; callers retrying an
// identical intent treat that as success.
func (r MembershipRepository) Insert(_ context.Context, m domain.GroupMembership) error {
	data, err := json.Marshal(fromMembership(m))
	if err != nil {
		return fmt.Errorf("marshal membership: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		key := memberKey(m.GroupID, m.UserID)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrMembershipConflict
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(userGroupKey(m.UserID, m.GroupID), data)
	})
	return classify(err)
}

func (r MembershipRepository) Get(_ context.Context, groupID, userID string) (domain.GroupMembership, error) {
	var disk diskMembership
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(memberKey(groupID, userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return domain.GroupMembership{}, errors.ErrMembershipNotFound
		}
		return domain.GroupMembership{}, classify(err)
	}
	return toMembership(disk), nil
}

func (r MembershipRepository) ListForGroup(_ context.Context, groupID string) ([]domain.GroupMembership, error) {
	return r.scan([]byte("member:" + groupID + ":"))
}

func (r MembershipRepository) ListForUser(_ context.Context, userID string) ([]domain.GroupMembership, error) {
	return r.scan([]byte("usergroup:" + userID + ":"))
}

func (r MembershipRepository) scan(prefix []byte) ([]domain.GroupMembership, error) {
	var memberships []domain.GroupMembership
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskMembership
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			})
			if err != nil {
				return err
			}
			memberships = append(memberships, toMembership(disk))
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return memberships, nil
}

// Delete removes a membership. Removing the membership that would leave
// the group without any creator is refused with ErrLastCreator: the
// group must be deleted instead of being orphaned.
func (r MembershipRepository) Delete(_ context.Context, groupID, userID string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		key := memberKey(groupID, userID)
		item, err := txn.Get(key)
		if err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrMembershipNotFound
			}
			return err
		}
		var disk diskMembership
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		}); err != nil {
			return err
		}

		if disk.IsCreator {
			creators, err := countCreators(txn, groupID)
			if err != nil {
				return err
			}
			if creators <= 1 {
				return errors.ErrLastCreator
			}
		}

		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(userGroupKey(userID, groupID))
	})
	return classify(err)
}

func countCreators(txn *badger.Txn, groupID string) (int, error) {
	prefix := []byte("member:" + groupID + ":")
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	count := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var disk diskMembership
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
		if err != nil {
			return 0, err
		}
		if disk.IsCreator {
			count++
		}
	}
	return count, nil
}

// deleteMemberships clears every membership of a group; used by group
// deletion inside the same transaction.
func deleteMemberships(txn *badger.Txn, groupID string) error {
	prefix := []byte("member:" + groupID + ":")
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := txn.NewIterator(options)

	var keys [][]byte
	var users []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var disk diskMembership
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
		if err != nil {
			it.Close()
			return err
		}
		keys = append(keys, it.Item().KeyCopy(nil))
		users = append(users, disk.UserID)
	}
	// Close before mutating: deletes are illegal while an iterator is open.
	it.Close()

	for i, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
		if err := txn.Delete(userGroupKey(users[i], groupID)); err != nil {
			return err
		}
	}
	return nil
}

func fromMembership(m domain.GroupMembership) diskMembership {
	return diskMembership{
		GroupID:   m.GroupID,
		UserID:    m.UserID,
		IsCreator: m.IsCreator,
		JoinedAt:  m.JoinedAt.Unix(),
	}
}

func toMembership(d diskMembership) domain.GroupMembership {
	return domain.GroupMembership{
		GroupID:   d.GroupID,
		UserID:    d.UserID,
		IsCreator: d.IsCreator,
		JoinedAt:  time.Unix(d.JoinedAt, 0).UTC(),
	}
}
