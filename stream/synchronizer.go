// Package stream synchronizes the message sequence of the active group:
// historical snapshot first, then a live subscription, merged without
// duplicates or reordering.
package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"groupmeet/contract"
	"groupmeet/domain"
	"groupmeet/errors"
	"groupmeet/retry"
)

// State is the synchronizer lifecycle: Idle (no active group), Loading
// (snapshot fetch in flight), Live (snapshot applied, subscription open).
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLive
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	default:
		return "idle"
	}
}

// Moderator screens outbound text before it is sent.
type Moderator interface {
	Review(text string) error
}

const unseenBufferSize = 64

// Synchronizer owns the in-memory message sequence and the single live
// subscription for the active group. At most one group is active at a
// time; the subscription handle is released before a new one is opened.
type Synchronizer struct {
	log       *slog.Logger
	messages  contract.IMessageRepository
	realtime  contract.IRealtime
	moderator Moderator // optional
	retrier   *retry.Retrier

	mu      sync.Mutex
	state   State
	groupID string
	// epoch tags each load with the activation that issued it. A snapshot
	// arriving after a group switch carries a stale epoch and is
	// discarded, never merged.
	epoch   uint64
	seq     []domain.Message
	seen    map[uuid.UUID]struct{}
	sub     contract.ISubscription
	senders map[string]struct{}

	unseen chan []string
}

func NewSynchronizer(log *slog.Logger, messages contract.IMessageRepository,
	realtime contract.IRealtime, moderator Moderator, retrier *retry.Retrier) *Synchronizer {
	return &Synchronizer{
		log:       log,
		messages:  messages,
		realtime:  realtime,
		moderator: moderator,
		retrier:   retrier,
		seen:      make(map[uuid.UUID]struct{}),
		senders:   make(map[string]struct{}),
		unseen:    make(chan []string, unseenBufferSize),
	}
}

// Unseen delivers batches of sender ids that appeared in the sequence
// without a known profile. The profile resolver consumes this channel.
func (s *Synchronizer) Unseen() <-chan []string {
	return s.unseen
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Synchronizer) ActiveGroup() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupID
}

// Messages returns a copy of the current in-memory sequence, ordered by
// arrival (snapshot order, then live-delivery order).
func (s *Synchronizer) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.seq))
	copy(out, s.seq)
	return out
}

// EnterGroup activates groupID: any previous subscription is torn down,
// the sequence is reset, and the historical load starts. The load runs
// in the background; results tagged with a superseded epoch are dropped.
func (s *Synchronizer) EnterGroup(ctx context.Context, groupID string) {
	s.mu.Lock()
	s.teardownLocked()
	s.state = StateLoading
	s.groupID = groupID
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	s.log.Info("Entering group", "group", groupID)
	go s.load(ctx, groupID, epoch)
}

// ExitGroup clears the active group and releases the subscription.
// Skipping this teardown would leak the live connection and bleed
// messages across groups after a switch.
func (s *Synchronizer) ExitGroup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groupID != "" {
		s.log.Info("Exiting group", "group", s.groupID)
	}
	s.teardownLocked()
}

func (s *Synchronizer) teardownLocked() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			s.log.Warn("Unsubscribe failed", "group", s.groupID, "err", err)
		}
		s.sub = nil
	}
	s.state = StateIdle
	s.groupID = ""
	s.epoch++
	s.seq = nil
	s.seen = make(map[uuid.UUID]struct{})
	s.senders = make(map[string]struct{})
}

// load fetches the snapshot, applies it if the epoch still matches, then
// opens the live subscription. Snapshot and subscription are sequenced so
// the merge rule only has to handle redelivery, not pre-delivery.
func (s *Synchronizer) load(ctx context.Context, groupID string, epoch uint64) {
	snapshot, err := retry.Fetch(ctx, s.retrier, func(ctx context.Context) ([]domain.Message, error) {
		return s.messages.ListForGroup(ctx, groupID)
	})
	if err != nil {
		// The sequence stays as-is; no partial overwrite.
		s.log.Error("Historical load failed", "group", groupID, "err", err)
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.log.Info("Discarding stale snapshot", "group", groupID)
		return
	}
	s.seq = make([]domain.Message, 0, len(snapshot))
	var unseen []string
	for _, msg := range snapshot {
		if _, dup := s.seen[msg.ID]; dup {
			continue
		}
		s.seen[msg.ID] = struct{}{}
		s.seq = append(s.seq, msg)
		unseen = s.trackSenderLocked(msg, unseen)
	}
	s.mu.Unlock()
	s.publishUnseen(unseen)

	sub, err := s.realtime.SubscribeMessages(ctx, groupID, func(msg domain.Message) {
		s.append(msg)
	})
	if err != nil {
		s.log.Error("Subscription failed", "group", groupID, "err", err)
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		// Group switched while subscribing; this handle must not survive.
		s.mu.Unlock()
		_ = sub.Unsubscribe()
		return
	}
	s.sub = sub
	s.state = StateLive
	s.mu.Unlock()
	s.log.Info("Stream live", "group", groupID, "snapshot", len(snapshot))
}

// append applies one live delivery. Messages for a no-longer-active group
// and redelivered ids are silent no-ops; everything else goes to the tail.
func (s *Synchronizer) append(msg domain.Message) {
	s.mu.Lock()
	if msg.GroupID != s.groupID {
		s.mu.Unlock()
		return
	}
	if _, dup := s.seen[msg.ID]; dup {
		s.mu.Unlock()
		return
	}
	s.seen[msg.ID] = struct{}{}
	s.seq = append(s.seq, msg)
	unseen := s.trackSenderLocked(msg, nil)
	s.mu.Unlock()
	s.publishUnseen(unseen)
}

func (s *Synchronizer) trackSenderLocked(msg domain.Message, unseen []string) []string {
	if msg.IsSystem() {
		return unseen
	}
	if _, ok := s.senders[msg.Sender]; ok {
		return unseen
	}
	s.senders[msg.Sender] = struct{}{}
	return append(unseen, msg.Sender)
}

func (s *Synchronizer) publishUnseen(ids []string) {
	if len(ids) == 0 {
		return
	}
	select {
	case s.unseen <- ids:
	default:
		// Un-mark the senders so they resurface in a later batch instead
		// of silently staying unhydrated.
		s.ForgetSenders(ids)
		s.log.Warn("Unseen-sender batch dropped, consumer too slow", "ids", len(ids))
	}
}

// ForgetSenders un-marks sender ids so their next message lands in a
// fresh unseen batch. Hydration calls this for ids it could not resolve
// to a profile; without it a failed or missing fetch would stick the
// fallback name until group re-entry.
func (s *Synchronizer) ForgetSenders(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.senders, id)
	}
}

// Send writes a message for the active group. Fire-and-forget: the stored
// message arrives back through the live subscription, it is never echoed
// locally. Failures surface to the caller; the input is theirs to resend.
func (s *Synchronizer) Send(ctx context.Context, sess domain.Session, text string) error {
	s.mu.Lock()
	groupID := s.groupID
	s.mu.Unlock()
	if groupID == "" {
		return errors.ErrNoActiveGroup
	}
	if s.moderator != nil {
		if err := s.moderator.Review(text); err != nil {
			return err
		}
	}

	_, err := s.messages.Insert(ctx, domain.Message{
		GroupID: groupID,
		Sender:  sess.UserID,
		Text:    text,
	})
	if err != nil {
		s.log.Error("Send failed", "group", groupID, "err", err)
		return err
	}
	return nil
}
