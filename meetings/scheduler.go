// Package meetings schedules video calls for a group and announces them
// in the message stream.
package meetings

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"groupmeet/contract"
	"groupmeet/domain"
	"groupmeet/retry"
)

const meetBaseURL = "https://meet.jit.si/"

var validate = validator.New()

type IScheduler interface {
	Schedule(ctx context.Context, cmd ScheduleCommand) (domain.Meeting, error)
	ListForGroup(ctx context.Context, groupID string) ([]domain.Meeting, error)
}

type ScheduleCommand struct {
	GroupID      string    `validate:"required"`
	CreatedBy    string    `validate:"required"`
	Topic        string    `validate:"required,min=3,max=64"`
	ScheduledFor time.Time `validate:"required"`
}

type Scheduler struct {
	log      *slog.Logger
	meetings contract.IMeetingRepository
	messages contract.IMessageRepository
	retrier  *retry.Retrier
}

func NewScheduler(log *slog.Logger, meetings contract.IMeetingRepository,
	messages contract.IMessageRepository, retrier *retry.Retrier) *Scheduler {
	return &Scheduler{
		log:      log,
		meetings: meetings,
		messages: messages,
		retrier:  retrier,
	}
}

// Schedule creates the meeting with a generated join link, then posts a
// system message announcing it to the group. Both are writes: failures
// surface to the caller and are never auto-retried.
func (s *Scheduler) Schedule(ctx context.Context, cmd ScheduleCommand) (domain.Meeting, error) {
	// 1. Validate before any write.
	if err := validate.Struct(cmd); err != nil {
		return domain.Meeting{}, fmt.Errorf("invalid meeting: %w", err)
	}

	// 2. Persist the meeting row.
	meeting, err := s.meetings.Insert(ctx, domain.Meeting{
		GroupID:      cmd.GroupID,
		Topic:        cmd.Topic,
		JoinLink:     joinLink(cmd.Topic),
		ScheduledFor: cmd.ScheduledFor.UTC(),
		CreatedBy:    cmd.CreatedBy,
	})
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("scheduling meeting: %w", err)
	}

	// 3. Announce it in the stream. The announcement arrives at every
	// member through the live subscription like any other message.
	_, err = s.messages.Insert(ctx, domain.Message{
		GroupID: meeting.GroupID,
		Sender:  domain.SystemSender,
		Text:    meeting.Announcement(),
	})
	if err != nil {
		s.log.Error("Meeting announcement failed", "meeting", meeting.ID, "err", err)
		return meeting, fmt.Errorf("announcing meeting: %w", err)
	}

	s.log.Info("Meeting scheduled", "meeting", meeting.ID, "group", meeting.GroupID)
	return meeting, nil
}

// ListForGroup returns the group's meetings ordered by schedule.
func (s *Scheduler) ListForGroup(ctx context.Context, groupID string) ([]domain.Meeting, error) {
	return retry.Fetch(ctx, s.retrier, func(ctx context.Context) ([]domain.Meeting, error) {
		return s.meetings.ListForGroup(ctx, groupID)
	})
}

// joinLink derives a meet room from the topic plus a random suffix so
// two meetings on the same topic never share a room.
func joinLink(topic string) string {
	suffix := make([]byte, 4)
	// rand.Read never fails on supported platforms
	_, _ = rand.Read(suffix)
	room := strings.ReplaceAll(strings.TrimSpace(topic), " ", "_")
	return meetBaseURL + room + "_" + hex.EncodeToString(suffix)
}
