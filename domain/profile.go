package domain

import (
	"strings"
	"time"
)

// UserProfile is the public profile attached to a user id. One profile
// per user, created alongside the account; mutable by its owner only.
type UserProfile struct {
	ID        string
	Name      string
	Bio       string
	Topics    []string
	CreatedAt time.Time
}

// FallbackDisplayName derives a display name for a sender whose profile
// could not be resolved. Email-shaped ids keep their local part; opaque
// ids are truncated. Never empty for a non-empty id.
func FallbackDisplayName(userID string) string {
	if at := strings.IndexByte(userID, '@'); at > 0 {
		return userID[:at]
	}
	if len(userID) > 8 {
		return userID[:8]
	}
	return userID
}
