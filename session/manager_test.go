package session

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"groupmeet/domain"
)

// fakeProvider drives the manager with a scripted restore result and a
// hand-fed auth event channel.
type fakeProvider struct {
	restored   *domain.Session
	restoreErr error
	events     chan *domain.Session
}

func newFakeProvider(restored *domain.Session) *fakeProvider {
	return &fakeProvider{restored: restored, events: make(chan *domain.Session, 4)}
}

func (f *fakeProvider) SignUp(context.Context, string, string) (domain.Session, error) {
	return domain.Session{}, nil
}
func (f *fakeProvider) SignIn(context.Context, string, string) (domain.Session, error) {
	return domain.Session{}, nil
}
func (f *fakeProvider) SignOut(context.Context) error { return nil }
func (f *fakeProvider) Restore(context.Context) (*domain.Session, error) {
	return f.restored, f.restoreErr
}
func (f *fakeProvider) Events() <-chan *domain.Session { return f.events }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func Test_Run_Restores_Persisted_Session(t *testing.T) {
	req := require.New(t)
	provider := newFakeProvider(&domain.Session{UserID: "u1", IsAuthenticated: true})
	manager := NewManager(slog.Default(), provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = manager.Run(ctx) }()

	waitFor(t, func() bool {
		_, ok := manager.Current()
		return ok
	})
	sess, ok := manager.Current()
	req.True(ok)
	req.Equal("u1", sess.UserID)
}

func Test_Run_Unreachable_Provider_Means_Logged_Out(t *testing.T) {
	req := require.New(t)
	provider := newFakeProvider(nil)
	provider.restoreErr = fmt.Errorf("identity endpoint unreachable")
	manager := NewManager(slog.Default(), provider)

	transitions := make(chan *domain.Session, 1)
	manager.OnChange(func(s *domain.Session) { transitions <- s })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = manager.Run(ctx) }()

	select {
	case s := <-transitions:
		req.Nil(s)
	case <-time.After(2 * time.Second):
		t.Fatal("no transition delivered")
	}
	_, ok := manager.Current()
	req.False(ok)
}

func Test_OnChange_Fires_On_Every_Transition(t *testing.T) {
	req := require.New(t)
	provider := newFakeProvider(nil)
	manager := NewManager(slog.Default(), provider)

	var got []*domain.Session
	done := make(chan struct{}, 8)
	manager.OnChange(func(s *domain.Session) {
		got = append(got, s)
		done <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = manager.Run(ctx) }()

	<-done // restore -> nil

	provider.events <- &domain.Session{UserID: "u1", IsAuthenticated: true}
	<-done
	provider.events <- nil // sign-out
	<-done

	req.Len(got, 3)
	req.Nil(got[0])
	req.Equal("u1", got[1].UserID)
	req.Nil(got[2])
	_, ok := manager.Current()
	req.False(ok)
}
