// Package session owns the authenticated identity and its lifecycle.
// The manager keeps the current session as an in-memory projection of the
// identity provider's state and notifies registered handlers on every
// auth transition.
package session

import (
	"context"
	"log/slog"
	"sync"

	"groupmeet/contract"
	"groupmeet/domain"
)

// Manager exposes the current session and a change-notification stream.
// It implements contract.Worker: Run restores the persisted session once,
// then consumes the provider's auth-state channel until ctx is done.
type Manager struct {
	mu       sync.Mutex
	log      *slog.Logger
	provider contract.IIdentityProvider
	current  *domain.Session
	handlers []func(*domain.Session)
	restored bool
}

func NewManager(log *slog.Logger, provider contract.IIdentityProvider) *Manager {
	return &Manager{log: log, provider: provider}
}

// Current returns the active session, if any.
func (m *Manager) Current() (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return domain.Session{}, false
	}
	return *m.current, true
}

// OnChange registers a handler invoked on every subsequent auth
// transition with the new session, or nil on sign-out. Handlers run on
// the manager's worker goroutine; they must not block.
func (m *Manager) OnChange(handler func(*domain.Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// Run restores the session, then loops on the provider's event channel.
// A restoration failure resolves to logged-out, not to an error: the
// UI-facing layer shows the authentication entry point in that case.
func (m *Manager) Run(ctx context.Context) error {
	m.restoreOnce(ctx)

	events := m.provider.Events()
	for {
		select {
		case <-ctx.Done():
			m.log.Debug("Context done, stopping session manager")
			return nil
		case sess, ok := <-events:
			if !ok {
				m.log.Debug("Auth event channel closed")
				return nil
			}
			m.transition(sess)
		}
	}
}

func (m *Manager) restoreOnce(ctx context.Context) {
	m.mu.Lock()
	already := m.restored
	m.restored = true
	m.mu.Unlock()
	if already {
		return
	}

	sess, err := m.provider.Restore(ctx)
	if err != nil {
		// Unreachable identity provider at startup is logged-out, not fatal.
		m.log.Warn("Session restoration failed, starting logged out", "err", err)
		m.transition(nil)
		return
	}
	m.transition(sess)
}

// transition atomically replaces the current session and fans the change
// out to every registered handler.
func (m *Manager) transition(sess *domain.Session) {
	m.mu.Lock()
	m.current = sess
	handlers := make([]func(*domain.Session), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	if sess != nil {
		m.log.Info("Session changed", "user", sess.UserID)
	} else {
		m.log.Info("Session cleared")
	}
	for _, handler := range handlers {
		handler(sess)
	}
}
