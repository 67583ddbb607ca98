package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"groupmeet/domain"
)

type MeetingRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMeetingRepository(db *badger.DB, log *slog.Logger) MeetingRepository {
	return MeetingRepository{db: db, log: log}
}

type diskMeeting struct {
	ID           uuid.UUID `json:"id"`
	GroupID      string    `json:"group_id"`
	Topic        string    `json:"topic"`
	JoinLink     string    `json:"join_link"`
	ScheduledFor time.Time `json:"scheduled_for"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// Keyed like messages so a forward scan lists meetings in scheduling order.
func meetingKey(m domain.Meeting) []byte {
	return []byte(fmt.Sprintf("meeting:%s:%019d:%s", m.GroupID, m.ScheduledFor.UnixNano(), m.ID))
}

func (r MeetingRepository) Insert(_ context.Context, meeting domain.Meeting) (domain.Meeting, error) {
	if meeting.ID == uuid.Nil {
		meeting.ID = uuid.New()
	}
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(fromMeeting(meeting))
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("marshal meeting: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(meetingKey(meeting), data)
	})
	if err != nil {
		return domain.Meeting{}, classify(err)
	}
	return meeting, nil
}

func (r MeetingRepository) ListForGroup(_ context.Context, groupID string) ([]domain.Meeting, error) {
	prefix := []byte("meeting:" + groupID + ":")
	var meetings []domain.Meeting
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskMeeting
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			})
			if err != nil {
				return err
			}
			meetings = append(meetings, toMeeting(disk))
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return meetings, nil
}

func fromMeeting(m domain.Meeting) diskMeeting {
	return diskMeeting{
		ID:           m.ID,
		GroupID:      m.GroupID,
		Topic:        m.Topic,
		JoinLink:     m.JoinLink,
		ScheduledFor: m.ScheduledFor,
		CreatedBy:    m.CreatedBy,
		CreatedAt:    m.CreatedAt,
	}
}

func toMeeting(d diskMeeting) domain.Meeting {
	return domain.Meeting{
		ID:           d.ID,
		GroupID:      d.GroupID,
		Topic:        d.Topic,
		JoinLink:     d.JoinLink,
		ScheduledFor: d.ScheduledFor,
		CreatedBy:    d.CreatedBy,
		CreatedAt:    d.CreatedAt,
	}
}
