// Package domain contains the core concepts of the group chat system.
// This file defines the authenticated Session.
// No runtime, network, or UI logic should be added here.
package domain

// Session is the authenticated identity of this client. It is replaced
// atomically on every auth transition (sign-in, refresh, sign-out) and
// never partially updated.
type Session struct {
	UserID          string
	Email           string
	IsAuthenticated bool
}
