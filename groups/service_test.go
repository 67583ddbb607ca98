package groups

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"groupmeet/domain"
	"groupmeet/errors"
	"groupmeet/mocks"
	"groupmeet/retry"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

type serviceFixture struct {
	groups      *mocks.MockIGroupRepository
	memberships *mocks.MockIMembershipRepository
	directory   *mocks.MockIDirectory
	service     *GroupService
}

func newService(t *testing.T) serviceFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := serviceFixture{
		groups:      mocks.NewMockIGroupRepository(ctrl),
		memberships: mocks.NewMockIMembershipRepository(ctrl),
		directory:   mocks.NewMockIDirectory(ctrl),
	}
	retrier := retry.NewRetrier(slog.Default(), retry.DefaultMaxAttempts, retry.DefaultBaseDelay, nil, nil).WithSleep(noSleep)
	f.service = NewGroupService(slog.Default(), f.groups, f.memberships, f.directory, retrier)
	return f
}

func Test_Load_Retries_Transient_Then_Succeeds(t *testing.T) {
	req := require.New(t)
	f := newService(t)
	ctx := context.Background()
	want := domain.Group{ID: "g1", Name: "chess"}

	gomock.InOrder(
		f.groups.EXPECT().GetByID(ctx, "g1").Return(domain.Group{}, errors.Transient(context.DeadlineExceeded)),
		f.groups.EXPECT().GetByID(ctx, "g1").Return(want, nil),
	)

	group, err := f.service.Load(ctx, "g1")
	req.NoError(err)
	req.Equal(want, group)
}

func Test_Load_Vanished_Group_Is_Terminal(t *testing.T) {
	req := require.New(t)
	f := newService(t)
	ctx := context.Background()

	// A deleted group is not retried; the caller returns to the list.
	f.groups.EXPECT().GetByID(ctx, "g1").Return(domain.Group{}, errors.ErrGroupNotFound).Times(1)

	_, err := f.service.Load(ctx, "g1")
	req.ErrorIs(err, errors.ErrGroupNotFound)
}

func Test_Create_Persists_Group_And_Creator_Membership(t *testing.T) {
	req := require.New(t)
	f := newService(t)
	ctx := context.Background()

	var created domain.Group
	f.groups.EXPECT().Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, g domain.Group) error {
			created = g
			return nil
		})
	var membership domain.GroupMembership
	f.memberships.EXPECT().Insert(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, m domain.GroupMembership) error {
			membership = m
			return nil
		})

	group, err := f.service.Create(ctx, CreateGroupCommand{
		CreatorID:  "u1",
		Name:       "board games",
		MaxMembers: 12,
		Topics:     []string{"chess", "go"},
	})
	req.NoError(err)
	req.Equal(created.ID, group.ID)
	req.Len(group.InviteCode, domain.InviteCodeLength)
	req.Equal(group.ID, membership.GroupID)
	req.True(membership.IsCreator)
}

func Test_Create_Rejects_Invalid_Command(t *testing.T) {
	req := require.New(t)
	f := newService(t)

	_, err := f.service.Create(context.Background(), CreateGroupCommand{
		CreatorID:  "u1",
		Name:       "ab", // too short
		MaxMembers: 12,
	})
	req.Error(err)
}

func Test_Create_Regenerates_On_Invite_Code_Clash(t *testing.T) {
	req := require.New(t)
	f := newService(t)
	ctx := context.Background()

	var codes []string
	gomock.InOrder(
		f.groups.EXPECT().Create(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, g domain.Group) error {
				codes = append(codes, g.InviteCode)
				return errors.ErrInviteCodeTaken
			}),
		f.groups.EXPECT().Create(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, g domain.Group) error {
				codes = append(codes, g.InviteCode)
				return nil
			}),
	)
	f.memberships.EXPECT().Insert(ctx, gomock.Any()).Return(nil)

	group, err := f.service.Create(ctx, CreateGroupCommand{CreatorID: "u1", Name: "trivia", MaxMembers: 5})
	req.NoError(err)
	req.Len(codes, 2)
	req.NotEqual(codes[0], codes[1])
	req.Equal(codes[1], group.InviteCode)
}

func Test_ListForUser_Skips_Vanished_Groups(t *testing.T) {
	req := require.New(t)
	f := newService(t)
	ctx := context.Background()

	f.memberships.EXPECT().ListForUser(ctx, "u1").Return([]domain.GroupMembership{
		{GroupID: "g1", UserID: "u1"},
		{GroupID: "gone", UserID: "u1"},
	}, nil)
	f.groups.EXPECT().GetByID(ctx, "g1").Return(domain.Group{ID: "g1", Name: "chess"}, nil)
	f.groups.EXPECT().GetByID(ctx, "gone").Return(domain.Group{}, errors.ErrGroupNotFound)

	groups, err := f.service.ListForUser(ctx, "u1")
	req.NoError(err)
	req.Len(groups, 1)
	req.Equal("g1", groups[0].ID)
}

func Test_Members_Joins_Emails(t *testing.T) {
	req := require.New(t)
	f := newService(t)
	ctx := context.Background()

	f.memberships.EXPECT().ListForGroup(ctx, "g1").Return([]domain.GroupMembership{
		{GroupID: "g1", UserID: "u1", IsCreator: true},
		{GroupID: "g1", UserID: "u2"},
	}, nil)
	f.directory.EXPECT().EmailByID(ctx, "u1").Return("alice@example.com", nil)
	f.directory.EXPECT().EmailByID(ctx, "u2").Return("", errors.ErrUserNotFound)

	members, err := f.service.Members(ctx, "g1")
	req.NoError(err)
	req.Len(members, 2)
	req.Equal("alice@example.com", members[0].Email)
	req.True(members[0].IsCreator)
	req.Empty(members[1].Email)
}

func Test_Leave_Surfaces_Last_Creator_Refusal(t *testing.T) {
	req := require.New(t)
	f := newService(t)
	ctx := context.Background()

	f.memberships.EXPECT().Delete(ctx, "g1", "u1").Return(errors.ErrLastCreator)

	req.ErrorIs(f.service.Leave(ctx, "g1", "u1"), errors.ErrLastCreator)
}

func Test_Delete_Requires_Creator(t *testing.T) {
	req := require.New(t)
	f := newService(t)
	ctx := context.Background()

	f.memberships.EXPECT().Get(ctx, "g1", "u2").Return(domain.GroupMembership{GroupID: "g1", UserID: "u2"}, nil)
	req.ErrorIs(f.service.Delete(ctx, "g1", "u2"), errors.ErrUnauthorized)

	f.memberships.EXPECT().Get(ctx, "g1", "u1").Return(domain.GroupMembership{GroupID: "g1", UserID: "u1", IsCreator: true}, nil)
	f.groups.EXPECT().Delete(ctx, "g1").Return(nil)
	req.NoError(f.service.Delete(ctx, "g1", "u1"))
}

func Test_InviteLink(t *testing.T) {
	req := require.New(t)
	f := newService(t)

	link := f.service.InviteLink(domain.Group{InviteCode: "AB12CD34EF56"})
	req.Equal("/invite/AB12CD34EF56", link)
}
