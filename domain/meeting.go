package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Meeting is a scheduled video call for a group. Created as a side
// effect of scheduling and immutable afterwards; it is surfaced into the
// message stream as a system message.
type Meeting struct {
	ID           uuid.UUID
	GroupID      string
	Topic        string
	JoinLink     string
	ScheduledFor time.Time
	CreatedBy    string
	CreatedAt    time.Time
}

// Announcement builds the system message text broadcast to the group
// when the meeting is scheduled.
func (m Meeting) Announcement() string {
	return fmt.Sprintf("New meeting scheduled: %q on %s\nJoin here: %s",
		m.Topic,
		m.ScheduledFor.Format(time.RFC1123),
		m.JoinLink,
	)
}
