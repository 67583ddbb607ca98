// Package repositories implements the backend's table-like CRUD over
// BadgerDB. Uniqueness constraints (invite codes, membership pairs) are
// enforced here, inside transactions, so the client may treat conflicting
// inserts as benign races. Unexpected storage failures are wrapped as
// transient so the read path can retry them.
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

type GroupRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewGroupRepository(db *badger.DB, log *slog.Logger) GroupRepository {
	return GroupRepository{db: db, log: log}
}

// diskGroup is the stored representation of a domain.Group.
type diskGroup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Topics      []string  `json:"topics"`
	MaxMembers  int       `json:"max_members"`
	InviteCode  string    `json:"invite_code"`
	CreatedAt   time.Time `json:"created_at"`
}

func groupKey(id string) []byte    { return []byte("group:" + id) }
func inviteKey(code string) []byte { return []byte("invite:" + code) }

// Create persists the group and its invite-code index entry in one
// transaction. A code already in use fails with ErrInviteCodeTaken.
func (r GroupRepository) Create(_ context.Context, group domain.Group) error {
	data, err := json.Marshal(fromGroup(group))
	if err != nil {
		return fmt.Errorf("marshal group: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(inviteKey(group.InviteCode)); err == nil {
			return errors.ErrInviteCodeTaken
		}
		if err := txn.Set(groupKey(group.ID), data); err != nil {
			return err
		}
		return txn.Set(inviteKey(group.InviteCode), []byte(group.ID))
	})
	return classify(err)
}

func (r GroupRepository) GetByID(_ context.Context, id string) (domain.Group, error) {
	var disk diskGroup
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(groupKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return domain.Group{}, errors.ErrGroupNotFound
		}
		return domain.Group{}, classify(err)
	}
	return toGroup(disk), nil
}

// GetByInviteCode resolves the invite-code index, then the group row.
func (r GroupRepository) GetByInviteCode(ctx context.Context, code string) (domain.Group, error) {
	var groupID string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(inviteKey(code))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			groupID = string(val)
			return nil
		})
	})
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return domain.Group{}, errors.ErrGroupNotFound
		}
		return domain.Group{}, classify(err)
	}
	return r.GetByID(ctx, groupID)
}

// Delete removes the group, its invite index, and all its memberships.
// This is the only legal way to retire a group whose sole remaining
// creator wants out.
func (r GroupRepository) Delete(ctx context.Context, id string) error {
	group, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(groupKey(id)); err != nil {
			return err
		}
		if err := txn.Delete(inviteKey(group.InviteCode)); err != nil {
			return err
		}
		return deleteMemberships(txn, id)
	})
	return classify(err)
}

func fromGroup(g domain.Group) diskGroup {
	return diskGroup{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Topics:      g.Topics,
		MaxMembers:  g.MaxMembers,
		InviteCode:  g.InviteCode,
		CreatedAt:   g.CreatedAt,
	}
}

func toGroup(d diskGroup) domain.Group {
	return domain.Group{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Topics:      d.Topics,
		MaxMembers:  d.MaxMembers,
		InviteCode:  d.InviteCode,
		CreatedAt:   d.CreatedAt,
	}
}

// classify wraps unexpected storage failures as transient so idempotent
// reads can be retried. Domain sentinels pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case stderrors.Is(err, errors.ErrInviteCodeTaken),
		stderrors.Is(err, errors.ErrMembershipConflict),
		stderrors.Is(err, errors.ErrMembershipNotFound),
		stderrors.Is(err, errors.ErrLastCreator),
		stderrors.Is(err, errors.ErrGroupNotFound),
		stderrors.Is(err, errors.ErrUserNotFound),
		stderrors.Is(err, errors.ErrUserAlreadyExists):
		return err
	default:
		return errors.Transient(err)
	}
}
