//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"groupmeet/domain"
)

// IIdentityProvider is the identity/session API of the backend: sign-up,
// sign-in, sign-out, session restoration, and an auth-state change stream.
// A nil session on the stream means signed out.
type IIdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (domain.Session, error)
	SignIn(ctx context.Context, email, password string) (domain.Session, error)
	SignOut(ctx context.Context) error
	// Restore resolves the persisted credentials into a session.
	// Returns (nil, nil) when no valid credentials exist.
	Restore(ctx context.Context) (*domain.Session, error)
	// Events delivers every subsequent auth transition.
	Events() <-chan *domain.Session
}

type IGroupRepository interface {
	GetByID(ctx context.Context, id string) (domain.Group, error)
	GetByInviteCode(ctx context.Context, code string) (domain.Group, error)
	Create(ctx context.Context, group domain.Group) error
	Delete(ctx context.Context, id string) error
}

type IMembershipRepository interface {
	Get(ctx context.Context, groupID, userID string) (domain.GroupMembership, error)
	// Insert fails with ErrMembershipConflict when the (group, user) pair
	// already exists. Uniqueness is enforced by the backend.
	Insert(ctx context.Context, membership domain.GroupMembership) error
	ListForGroup(ctx context.Context, groupID string) ([]domain.GroupMembership, error)
	ListForUser(ctx context.Context, userID string) ([]domain.GroupMembership, error)
	// Delete refuses to remove the last creator of a group (ErrLastCreator).
	Delete(ctx context.Context, groupID, userID string) error
}

type IMessageRepository interface {
	// ListForGroup returns the full snapshot ordered by CreatedAt ascending.
	ListForGroup(ctx context.Context, groupID string) ([]domain.Message, error)
	Insert(ctx context.Context, message domain.Message) (domain.Message, error)
}

type IProfileRepository interface {
	// GetByIDs returns the profiles found for ids; missing ids are simply
	// absent from the result, never an error.
	GetByIDs(ctx context.Context, ids []string) ([]domain.UserProfile, error)
	Upsert(ctx context.Context, profile domain.UserProfile) error
}

type IMeetingRepository interface {
	Insert(ctx context.Context, meeting domain.Meeting) (domain.Meeting, error)
	ListForGroup(ctx context.Context, groupID string) ([]domain.Meeting, error)
}

// IDirectory is the privileged email lookup used when listing members.
// It is a server-side function, not raw row access.
type IDirectory interface {
	EmailByID(ctx context.Context, userID string) (string, error)
}

// ISubscription is a live push-channel subscription handle. It must be
// released before a new one is opened for a different group.
type ISubscription interface {
	Unsubscribe() error
}

// IRealtime is the push channel: filtered insert-event subscriptions
// scoped by group id.
type IRealtime interface {
	SubscribeMessages(ctx context.Context, groupID string, handler func(domain.Message)) (ISubscription, error)
}

// IMessagePublisher fans a committed message insert out to subscribers.
type IMessagePublisher interface {
	PublishMessage(ctx context.Context, message domain.Message) error
}

// IEntryPath abstracts the URL path the client was addressed with.
// Rewrite replaces it with a canonical path to avoid replay on refresh.
type IEntryPath interface {
	Current() string
	Rewrite(path string)
}

// IConnectivityProbe checks backend reachability between retry attempts.
type IConnectivityProbe interface {
	Check(ctx context.Context) bool
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
