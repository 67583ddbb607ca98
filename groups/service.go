// Package groups loads and manages group metadata and membership around
// the active-group pointer.
package groups

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"groupmeet/contract"
	"groupmeet/domain"
	"groupmeet/errors"
	"groupmeet/invite"
	"groupmeet/retry"
)

var validate = validator.New()

type IGroupService interface {
	Load(ctx context.Context, groupID string) (domain.Group, error)
	Create(ctx context.Context, cmd CreateGroupCommand) (domain.Group, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Group, error)
	Members(ctx context.Context, groupID string) ([]Member, error)
	Leave(ctx context.Context, groupID, userID string) error
	Delete(ctx context.Context, groupID, userID string) error
	InviteLink(group domain.Group) string
}

type CreateGroupCommand struct {
	CreatorID   string   `validate:"required"`
	Name        string   `validate:"required,min=3,max=64"`
	Description string   `validate:"max=500"`
	Topics      []string `validate:"max=10,dive,min=2,max=32"`
	MaxMembers  int      `validate:"required,min=1,max=500"`
}

// Member is a membership row joined with the privileged email lookup,
// ready for display.
type Member struct {
	UserID    string
	Email     string
	IsCreator bool
	JoinedAt  time.Time
}

type GroupService struct {
	log         *slog.Logger
	groups      contract.IGroupRepository
	memberships contract.IMembershipRepository
	directory   contract.IDirectory
	retrier     *retry.Retrier
}

func NewGroupService(log *slog.Logger, groups contract.IGroupRepository,
	memberships contract.IMembershipRepository, directory contract.IDirectory,
	retrier *retry.Retrier) *GroupService {
	return &GroupService{
		log:         log,
		groups:      groups,
		memberships: memberships,
		directory:   directory,
		retrier:     retrier,
	}
}

// Load fetches metadata for the active group. ErrGroupNotFound means the
// group vanished (deleted by its creator concurrently); callers return to
// the group list rather than retry.
func (s *GroupService) Load(ctx context.Context, groupID string) (domain.Group, error) {
	return retry.Fetch(ctx, s.retrier, func(ctx context.Context) (domain.Group, error) {
		return s.groups.GetByID(ctx, groupID)
	})
}

func (s *GroupService) Create(ctx context.Context, cmd CreateGroupCommand) (domain.Group, error) {
	// 1. Validate the command before touching storage.
	if err := validate.Struct(cmd); err != nil {
		return domain.Group{}, fmt.Errorf("invalid group: %w", err)
	}

	// 2. Persist with a fresh invite code. A code collision is a rare
	// random clash with another group, so regenerate and try again.
	group := domain.Group{
		ID:          uuid.New().String(),
		Name:        cmd.Name,
		Description: cmd.Description,
		Topics:      cmd.Topics,
		MaxMembers:  cmd.MaxMembers,
		CreatedAt:   time.Now().UTC(),
	}
	for attempt := 0; ; attempt++ {
		group.InviteCode = domain.NewInviteCode()
		err := s.groups.Create(ctx, group)
		if err == nil {
			break
		}
		if stderrors.Is(err, errors.ErrInviteCodeTaken) && attempt < 2 {
			continue
		}
		return domain.Group{}, err
	}

	// 3. The creator joins immediately; every group has a creator member
	// for its whole lifetime.
	membership := domain.GroupMembership{
		GroupID:   group.ID,
		UserID:    cmd.CreatorID,
		IsCreator: true,
		JoinedAt:  time.Now().UTC(),
	}
	if err := s.memberships.Insert(ctx, membership); err != nil {
		return domain.Group{}, fmt.Errorf("creating creator membership: %w", err)
	}

	s.log.Info("Group created", "group", group.ID, "creator", cmd.CreatorID)
	return group, nil
}

// ListForUser resolves the user's memberships into group metadata.
// Groups that vanished between the two reads are skipped.
func (s *GroupService) ListForUser(ctx context.Context, userID string) ([]domain.Group, error) {
	memberships, err := retry.Fetch(ctx, s.retrier, func(ctx context.Context) ([]domain.GroupMembership, error) {
		return s.memberships.ListForUser(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	groups := make([]domain.Group, 0, len(memberships))
	for _, m := range memberships {
		group, err := s.groups.GetByID(ctx, m.GroupID)
		if err != nil {
			if stderrors.Is(err, errors.ErrGroupNotFound) {
				continue
			}
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// Members lists the group's memberships joined with each member's email.
// A user the directory no longer knows keeps a blank email instead of
// failing the whole listing.
func (s *GroupService) Members(ctx context.Context, groupID string) ([]Member, error) {
	memberships, err := retry.Fetch(ctx, s.retrier, func(ctx context.Context) ([]domain.GroupMembership, error) {
		return s.memberships.ListForGroup(ctx, groupID)
	})
	if err != nil {
		return nil, err
	}

	members := make([]Member, 0, len(memberships))
	for _, m := range memberships {
		email, err := s.directory.EmailByID(ctx, m.UserID)
		if err != nil && !stderrors.Is(err, errors.ErrUserNotFound) {
			return nil, err
		}
		members = append(members, Member{
			UserID:    m.UserID,
			Email:     email,
			IsCreator: m.IsCreator,
			JoinedAt:  m.JoinedAt,
		})
	}
	return members, nil
}

// Leave removes the user's membership. The storage layer refuses to
// orphan a group: the last creator gets ErrLastCreator and must delete
// the group instead.
func (s *GroupService) Leave(ctx context.Context, groupID, userID string) error {
	if err := s.memberships.Delete(ctx, groupID, userID); err != nil {
		return err
	}
	s.log.Info("Left group", "group", groupID, "user", userID)
	return nil
}

// Delete retires the group entirely. Only a creator may do this.
func (s *GroupService) Delete(ctx context.Context, groupID, userID string) error {
	membership, err := s.memberships.Get(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !membership.IsCreator {
		return errors.ErrUnauthorized
	}
	if err := s.groups.Delete(ctx, groupID); err != nil {
		return err
	}
	s.log.Info("Group deleted", "group", groupID, "by", userID)
	return nil
}

// InviteLink derives the shareable join path for a group.
func (s *GroupService) InviteLink(group domain.Group) string {
	return invite.PathForToken(group.InviteCode)
}
