package meetings

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"groupmeet/domain"
	"groupmeet/errors"
	"groupmeet/mocks"
	"groupmeet/retry"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func newScheduler(t *testing.T) (*Scheduler, *mocks.MockIMeetingRepository, *mocks.MockIMessageRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	meetings := mocks.NewMockIMeetingRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	retrier := retry.NewRetrier(slog.Default(), retry.DefaultMaxAttempts, retry.DefaultBaseDelay, nil, nil).WithSleep(noSleep)
	return NewScheduler(slog.Default(), meetings, messages, retrier), meetings, messages
}

func Test_Schedule_Creates_Meeting_And_System_Announcement(t *testing.T) {
	req := require.New(t)
	scheduler, meetings, messages := newScheduler(t)
	ctx := context.Background()
	at := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)

	meetings.EXPECT().Insert(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, m domain.Meeting) (domain.Meeting, error) {
			m.ID = uuid.New()
			m.CreatedAt = time.Now().UTC()
			return m, nil
		})
	var announcement domain.Message
	messages.EXPECT().Insert(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, msg domain.Message) (domain.Message, error) {
			announcement = msg
			return msg, nil
		})

	meeting, err := scheduler.Schedule(ctx, ScheduleCommand{
		GroupID:      "g1",
		CreatedBy:    "u1",
		Topic:        "sprint review",
		ScheduledFor: at,
	})
	req.NoError(err)
	req.True(strings.HasPrefix(meeting.JoinLink, "https://meet.jit.si/sprint_review_"))
	req.Equal(at, meeting.ScheduledFor)

	req.True(announcement.IsSystem())
	req.Equal("g1", announcement.GroupID)
	req.Contains(announcement.Text, `"sprint review"`)
	req.Contains(announcement.Text, meeting.JoinLink)
}

func Test_Schedule_Links_Are_Unique_Per_Meeting(t *testing.T) {
	req := require.New(t)
	req.NotEqual(joinLink("standup"), joinLink("standup"))
}

func Test_Schedule_Rejects_Invalid_Command(t *testing.T) {
	req := require.New(t)
	scheduler, _, _ := newScheduler(t)

	_, err := scheduler.Schedule(context.Background(), ScheduleCommand{
		GroupID:   "g1",
		CreatedBy: "u1",
		Topic:     "x", // too short
	})
	req.Error(err)
}

func Test_Schedule_Write_Failure_Surfaces_Without_Retry(t *testing.T) {
	req := require.New(t)
	scheduler, meetings, _ := newScheduler(t)
	ctx := context.Background()

	// Writes are never auto-retried, even when the failure is transient.
	meetings.EXPECT().Insert(ctx, gomock.Any()).
		Return(domain.Meeting{}, errors.Transient(context.DeadlineExceeded)).
		Times(1)

	_, err := scheduler.Schedule(ctx, ScheduleCommand{
		GroupID:      "g1",
		CreatedBy:    "u1",
		Topic:        "planning",
		ScheduledFor: time.Now().Add(time.Hour),
	})
	req.Error(err)
}

func Test_Schedule_Announcement_Failure_Surfaces(t *testing.T) {
	req := require.New(t)
	scheduler, meetings, messages := newScheduler(t)
	ctx := context.Background()

	meetings.EXPECT().Insert(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, m domain.Meeting) (domain.Meeting, error) {
			m.ID = uuid.New()
			return m, nil
		})
	messages.EXPECT().Insert(ctx, gomock.Any()).
		Return(domain.Message{}, errors.Transient(context.DeadlineExceeded)).
		Times(1)

	_, err := scheduler.Schedule(ctx, ScheduleCommand{
		GroupID:      "g1",
		CreatedBy:    "u1",
		Topic:        "planning",
		ScheduledFor: time.Now().Add(time.Hour),
	})
	req.Error(err)
}

func Test_ListForGroup_Retries_Transient(t *testing.T) {
	req := require.New(t)
	scheduler, meetings, _ := newScheduler(t)
	ctx := context.Background()

	gomock.InOrder(
		meetings.EXPECT().ListForGroup(ctx, "g1").Return(nil, errors.Transient(context.DeadlineExceeded)),
		meetings.EXPECT().ListForGroup(ctx, "g1").Return([]domain.Meeting{{Topic: "standup"}}, nil),
	)

	listed, err := scheduler.ListForGroup(ctx, "g1")
	req.NoError(err)
	req.Len(listed, 1)
}
