package domain

import (
	"crypto/rand"
	"time"
)

// InviteCodeLength is the fixed length of group invite codes.
const InviteCodeLength = 12

const inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Group is a named space members exchange messages in.
// Its invite code is unique across all groups; MaxMembers is at least 1.
type Group struct {
	ID          string
	Name        string
	Description string
	Topics      []string
	MaxMembers  int
	InviteCode  string
	CreatedAt   time.Time
}

// GroupMembership links a user to a group. A (GroupID, UserID) pair is
// unique, and every group keeps at least one membership with IsCreator
// set for its whole lifetime.
type GroupMembership struct {
	GroupID   string
	UserID    string
	IsCreator bool
	JoinedAt  time.Time
}

// NewInviteCode generates a fresh 12-character alphanumeric invite code.
// Uniqueness is enforced by the backend on group creation, not here.
func NewInviteCode() string {
	buf := make([]byte, InviteCodeLength)
	// rand.Read never fails on supported platforms
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(buf)
}
