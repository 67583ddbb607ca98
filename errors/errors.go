// Package errors defines the failure taxonomy shared by the sync engine
// and the backend boundary. Sentinel errors classify terminal failures;
// the Transient wrapper marks connectivity failures eligible for retry.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInvite is returned when an invite token matches no group.
	// Terminal and user-visible; the entry path is rewritten regardless.
	ErrInvalidInvite = fmt.Errorf("invalid invite code")

	// ErrGroupNotFound is returned when a referenced group no longer exists.
	// Callers must treat this as "return to group list", never retry.
	ErrGroupNotFound = fmt.Errorf("group not found")

	ErrMembershipNotFound = fmt.Errorf("membership not found")

	// ErrMembershipConflict signals a duplicate (group, user) insert.
	// Benign when it represents a retried identical intent.
	ErrMembershipConflict = fmt.Errorf("membership already exists")

	// ErrInviteCodeTaken signals a collision on the unique invite code.
	ErrInviteCodeTaken = fmt.Errorf("invite code already in use")

	// ErrLastCreator blocks deleting the membership that would leave a
	// group without any creator. The group must be deleted instead.
	ErrLastCreator = fmt.Errorf("cannot remove the last creator of a group")

	// ErrUnauthorized sends the caller back to the authentication entry point.
	ErrUnauthorized = fmt.Errorf("session is missing or no longer valid")

	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	// ErrNoActiveGroup rejects stream operations issued while no group
	// is being synchronized.
	ErrNoActiveGroup = fmt.Errorf("no active group")

	// ErrMessageRejected marks an outbound message blocked by moderation.
	ErrMessageRejected = fmt.Errorf("message rejected by moderation")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)

// TransientError marks a network/connectivity failure. Reads wrapped in
// the retry layer are re-attempted only for this class.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable connectivity failure.
// Wrapping nil returns nil so call sites can wrap unconditionally.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err belongs to the retryable failure class.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
