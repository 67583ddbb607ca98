// Package invite parses invite tokens from the entry path and performs
// idempotent join-or-resume against a group.
package invite

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"groupmeet/contract"
	"groupmeet/domain"
	"groupmeet/errors"
	"groupmeet/retry"
)

// CanonicalPath replaces the entry path once an invite token has been
// consumed, whether resolution succeeded or failed, so a refresh never
// re-triggers the join.
const CanonicalPath = "/"

const invitePrefix = "/invite/"

// PathForToken derives the shareable entry path for an invite token.
func PathForToken(token string) string {
	return invitePrefix + token
}

// TokenFromPath extracts the invite token from a path of the shape
// /invite/<token>. Returns false for any other path.
func TokenFromPath(path string) (string, bool) {
	if !strings.HasPrefix(path, invitePrefix) {
		return "", false
	}
	token := strings.TrimPrefix(path, invitePrefix)
	token = strings.TrimSuffix(token, "/")
	if token == "" {
		return "", false
	}
	return token, true
}

type Resolver struct {
	log         *slog.Logger
	groups      contract.IGroupRepository
	memberships contract.IMembershipRepository
	path        contract.IEntryPath
	retrier     *retry.Retrier
}

func NewResolver(log *slog.Logger, groups contract.IGroupRepository,
	memberships contract.IMembershipRepository, path contract.IEntryPath,
	retrier *retry.Retrier) *Resolver {
	return &Resolver{
		log:         log,
		groups:      groups,
		memberships: memberships,
		path:        path,
		retrier:     retrier,
	}
}

// CheckEntryPath inspects the entry path for an invite token and, if one
// is present, resolves it for the given session. The token is consumed
// either way: the path is rewritten to the canonical path on success and
// on failure. Returns the joined group id, or "" when no token was found.
func (r *Resolver) CheckEntryPath(ctx context.Context, sess domain.Session) (string, error) {
	token, ok := TokenFromPath(r.path.Current())
	if !ok {
		return "", nil
	}
	defer r.path.Rewrite(CanonicalPath)

	groupID, err := r.Resolve(ctx, token, sess)
	if err != nil {
		r.log.Warn("Invite resolution failed", "err", err)
		return "", err
	}
	return groupID, nil
}

// Resolve joins the group whose invite code equals token, or resumes an
// existing membership. Callers must pass a resolved session; Resolve must
// never run before the first non-nil session transition.
func (r *Resolver) Resolve(ctx context.Context, token string, sess domain.Session) (string, error) {
	if !sess.IsAuthenticated {
		return "", errors.ErrUnauthorized
	}

	// 1. Find the group for this invite code.
	group, err := retry.Fetch(ctx, r.retrier, func(ctx context.Context) (domain.Group, error) {
		return r.groups.GetByInviteCode(ctx, token)
	})
	if err != nil {
		if errors.IsTransient(err) {
			return "", fmt.Errorf("looking up invite: %w", err)
		}
		return "", errors.ErrInvalidInvite
	}

	// 2. Already a member? No-op resume: revisiting the same invite link,
	// a reload, or a duplicate event must not error.
	if _, err := r.memberships.Get(ctx, group.ID, sess.UserID); err == nil {
		r.log.Info("Invite resumed existing membership", "group", group.ID, "user", sess.UserID)
		return group.ID, nil
	}

	// 3. Join. A conflict with a concurrent identical insert is success.
	membership := domain.GroupMembership{
		GroupID:   group.ID,
		UserID:    sess.UserID,
		IsCreator: false,
		JoinedAt:  time.Now().UTC(),
	}
	if err := r.memberships.Insert(ctx, membership); err != nil {
		if stderrors.Is(err, errors.ErrMembershipConflict) {
			r.log.Info("Concurrent join raced, treating as success", "group", group.ID)
			return group.ID, nil
		}
		return "", fmt.Errorf("joining group %s: %w", group.ID, err)
	}

	r.log.Info("Joined group via invite", "group", group.ID, "user", sess.UserID)
	return group.ID, nil
}
