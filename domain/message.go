// Package domain contains the core concepts of the group chat system.
// This file defines Message and related rules.
// Messages are immutable and only ever appended, never edited or removed.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SystemSender is the sentinel sender of synthetic notifications,
// such as meeting announcements.
const SystemSender = "system"

// Message represents one immutable chat entry, ordered by CreatedAt
// ascending within its group.
type Message struct {
	ID        uuid.UUID
	GroupID   string
	Sender    string // user id, or SystemSender
	Text      string
	CreatedAt time.Time
}

// IsSystem reports whether the message is a synthetic notification.
func (m Message) IsSystem() bool {
	return m.Sender == SystemSender
}
