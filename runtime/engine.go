package runtime

import (
	"context"
	"log/slog"

	"groupmeet/domain"
	"groupmeet/groups"
	"groupmeet/invite"
	"groupmeet/profiles"
	"groupmeet/session"
	"groupmeet/stream"
)

const transitionBufferSize = 8

// Engine drives the control flow of the client: session transitions
// feed the invite check (exactly once per transition), a joined group
// becomes the active group, and the stream synchronizer follows the
// active-group pointer.
type Engine struct {
	log      *slog.Logger
	sessions *session.Manager
	invites  *invite.Resolver
	groups   groups.IGroupService
	stream   *stream.Synchronizer

	transitions chan *domain.Session
}

func NewEngine(log *slog.Logger, sessions *session.Manager, invites *invite.Resolver,
	groupService groups.IGroupService, synchronizer *stream.Synchronizer) *Engine {
	e := &Engine{
		log:         log,
		sessions:    sessions,
		invites:     invites,
		groups:      groupService,
		stream:      synchronizer,
		transitions: make(chan *domain.Session, transitionBufferSize),
	}
	e.sessions.OnChange(func(sess *domain.Session) {
		select {
		case e.transitions <- sess:
		default:
			log.Warn("Session transition dropped, engine too slow")
		}
	})
	return e
}

// Run consumes session transitions. Sign-out clears the active group;
// sign-in (or restoration) inspects the entry path for an invite token
// and activates the joined group.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.stream.ExitGroup()
			return nil
		case sess := <-e.transitions:
			if sess == nil {
				e.stream.ExitGroup()
				continue
			}
			groupID, err := e.invites.CheckEntryPath(ctx, *sess)
			if err != nil {
				// Terminal invite failures are user-visible; the entry
				// path has already been rewritten either way.
				e.log.Warn("Entry-path invite not honored", "err", err)
				continue
			}
			if groupID == "" {
				continue
			}
			if _, err := e.Activate(ctx, groupID); err != nil {
				e.log.Warn("Joined group could not be activated", "group", groupID, "err", err)
			}
		}
	}
}

// Activate makes groupID the active group: loads its metadata and starts
// message synchronization. ErrGroupNotFound means the group vanished and
// the caller returns to the group list.
func (e *Engine) Activate(ctx context.Context, groupID string) (domain.Group, error) {
	group, err := e.groups.Load(ctx, groupID)
	if err != nil {
		return domain.Group{}, err
	}
	e.stream.EnterGroup(ctx, groupID)
	return group, nil
}

// Join redeems an invite token provided directly (rather than on the
// entry path) and returns the joined group id.
func (e *Engine) Join(ctx context.Context, token string, sess domain.Session) (string, error) {
	return e.invites.Resolve(ctx, token, sess)
}

// Deactivate clears the active group and tears down its subscription.
func (e *Engine) Deactivate() {
	e.stream.ExitGroup()
}

// HydrationWorker resolves profile batches for unseen senders flagged by
// the stream synchronizer.
type HydrationWorker struct {
	log      *slog.Logger
	stream   *stream.Synchronizer
	profiles *profiles.Resolver
}

func NewHydrationWorker(log *slog.Logger, synchronizer *stream.Synchronizer,
	resolver *profiles.Resolver) *HydrationWorker {
	return &HydrationWorker{log: log, stream: synchronizer, profiles: resolver}
}

func (w *HydrationWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-w.stream.Unseen():
			w.hydrate(ctx, batch)
		}
	}
}

// hydrate resolves one batch. Ids that end up without a profile are
// un-marked in the synchronizer so their next message flags them again;
// fallback names cover the gap until then.
func (w *HydrationWorker) hydrate(ctx context.Context, batch []string) {
	if _, err := w.profiles.Resolve(ctx, batch); err != nil {
		w.log.Warn("Profile hydration incomplete", "ids", len(batch), "err", err)
	}
	var unresolved []string
	for _, id := range batch {
		if !w.profiles.Resolved(id) {
			unresolved = append(unresolved, id)
		}
	}
	if len(unresolved) > 0 {
		w.stream.ForgetSenders(unresolved)
	}
}
