package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"groupmeet/domain"
	"groupmeet/errors"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_GroupRepository_Invite_Code_Uniqueness(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repo := NewGroupRepository(db, slog.Default())
	ctx := context.Background()

	first := domain.Group{ID: "g1", Name: "go nuts", InviteCode: "AB12CD34EF56", MaxMembers: 10}
	req.NoError(repo.Create(ctx, first))

	clash := domain.Group{ID: "g2", Name: "other", InviteCode: "AB12CD34EF56", MaxMembers: 5}
	req.ErrorIs(repo.Create(ctx, clash), errors.ErrInviteCodeTaken)

	found, err := repo.GetByInviteCode(ctx, "AB12CD34EF56")
	req.NoError(err)
	req.Equal("g1", found.ID)

	_, err = repo.GetByInviteCode(ctx, "ZZZZZZZZZZZZ")
	req.ErrorIs(err, errors.ErrGroupNotFound)
}

func Test_GroupRepository_Delete_Removes_Group_And_Members(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	groups := NewGroupRepository(db, slog.Default())
	members := NewMembershipRepository(db, slog.Default())
	ctx := context.Background()

	req.NoError(groups.Create(ctx, domain.Group{ID: "g1", InviteCode: "AAAABBBBCCCC", MaxMembers: 3}))
	req.NoError(members.Insert(ctx, domain.GroupMembership{GroupID: "g1", UserID: "u1", IsCreator: true}))
	req.NoError(members.Insert(ctx, domain.GroupMembership{GroupID: "g1", UserID: "u2"}))

	req.NoError(groups.Delete(ctx, "g1"))

	_, err := groups.GetByID(ctx, "g1")
	req.ErrorIs(err, errors.ErrGroupNotFound)
	left, err := members.ListForGroup(ctx, "g1")
	req.NoError(err)
	req.Empty(left)
	mine, err := members.ListForUser(ctx, "u2")
	req.NoError(err)
	req.Empty(mine)
}

func Test_MembershipRepository_Unique_Pair(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repo := NewMembershipRepository(db, slog.Default())
	ctx := context.Background()

	m := domain.GroupMembership{GroupID: "g1", UserID: "u1", JoinedAt: time.Now().UTC()}
	req.NoError(repo.Insert(ctx, m))
	req.ErrorIs(repo.Insert(ctx, m), errors.ErrMembershipConflict)

	memberships, err := repo.ListForGroup(ctx, "g1")
	req.NoError(err)
	req.Len(memberships, 1)
}

func Test_MembershipRepository_Last_Creator_Guard(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repo := NewMembershipRepository(db, slog.Default())
	ctx := context.Background()

	req.NoError(repo.Insert(ctx, domain.GroupMembership{GroupID: "g1", UserID: "creator", IsCreator: true}))
	req.NoError(repo.Insert(ctx, domain.GroupMembership{GroupID: "g1", UserID: "member"}))

	// The sole creator cannot leave; the group must be deleted instead.
	req.ErrorIs(repo.Delete(ctx, "g1", "creator"), errors.ErrLastCreator)

	// Plain members leave freely.
	req.NoError(repo.Delete(ctx, "g1", "member"))

	// With a second creator present, the first one may leave.
	req.NoError(repo.Insert(ctx, domain.GroupMembership{GroupID: "g1", UserID: "cofounder", IsCreator: true}))
	req.NoError(repo.Delete(ctx, "g1", "creator"))
}

func Test_MessageRepository_Snapshot_Is_Ordered_Ascending(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repo := NewMessageRepository(db, slog.Default(), nil)
	ctx := context.Background()

	at := time.Now().UTC()
	var inserted []domain.Message
	for i := 0; i < 10; i++ {
		m, err := repo.Insert(ctx, domain.Message{
			GroupID:   "g1",
			Sender:    fmt.Sprintf("user_%d", i),
			Text:      fmt.Sprintf("message %d", i),
			CreatedAt: at.Add(time.Duration(i) * time.Minute),
		})
		req.NoError(err)
		inserted = append(inserted, m)
	}
	// A message for another group must not leak into the snapshot.
	_, err := repo.Insert(ctx, domain.Message{GroupID: "g2", Sender: "u", Text: "elsewhere"})
	req.NoError(err)

	snapshot, err := repo.ListForGroup(ctx, "g1")
	req.NoError(err)
	req.Len(snapshot, 10)
	req.Equal(
		lo.Map(inserted, func(m domain.Message, _ int) uuid.UUID { return m.ID }),
		lo.Map(snapshot, func(m domain.Message, _ int) uuid.UUID { return m.ID }),
	)
}

func Test_MessageRepository_Insert_Assigns_ID_And_Timestamp(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repo := NewMessageRepository(db, slog.Default(), nil)

	m, err := repo.Insert(context.Background(), domain.Message{GroupID: "g1", Sender: "u1", Text: "hi"})
	req.NoError(err)
	req.NotEqual(uuid.Nil, m.ID)
	req.False(m.CreatedAt.IsZero())
}

func Test_ProfileRepository_Missing_Ids_Are_Absent_Not_Errors(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repo := NewProfileRepository(db, slog.Default())
	ctx := context.Background()

	req.NoError(repo.Upsert(ctx, domain.UserProfile{ID: "u1", Name: "Alice"}))

	profiles, err := repo.GetByIDs(ctx, []string{"u1", "ghost"})
	req.NoError(err)
	req.Len(profiles, 1)
	req.Equal("Alice", profiles[0].Name)
}

func Test_MeetingRepository_Lists_By_Schedule_Order(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repo := NewMeetingRepository(db, slog.Default())
	ctx := context.Background()

	later := time.Now().UTC().Add(2 * time.Hour)
	sooner := time.Now().UTC().Add(1 * time.Hour)
	_, err := repo.Insert(ctx, domain.Meeting{GroupID: "g1", Topic: "retro", ScheduledFor: later, CreatedBy: "u1"})
	req.NoError(err)
	_, err = repo.Insert(ctx, domain.Meeting{GroupID: "g1", Topic: "standup", ScheduledFor: sooner, CreatedBy: "u1"})
	req.NoError(err)

	meetings, err := repo.ListForGroup(ctx, "g1")
	req.NoError(err)
	req.Len(meetings, 2)
	req.Equal("standup", meetings[0].Topic)
	req.Equal("retro", meetings[1].Topic)
}

func Test_UserRepository_Email_Uniqueness_And_Directory(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repo := NewUserRepository(db, slog.Default())
	ctx := context.Background()

	id, err := repo.CreateUser(ctx, "alice@example.com", "$argon2id$...")
	req.NoError(err)

	_, err = repo.CreateUser(ctx, "alice@example.com", "$argon2id$...")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)

	email, err := repo.EmailByID(ctx, id)
	req.NoError(err)
	req.Equal("alice@example.com", email)

	_, err = repo.EmailByID(ctx, "nobody")
	req.ErrorIs(err, errors.ErrUserNotFound)
}
