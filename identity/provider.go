// Package identity is the reference identity provider: argon2id
// credentials, HS256 session tokens persisted in a credential file, and
// an auth-state change stream consumed by the session manager.
package identity

import (
	"context"
	"log/slog"
	"time"

	"groupmeet/auth"
	"groupmeet/contract"
	"groupmeet/domain"
	"groupmeet/errors"
	"groupmeet/repositories"
)

const eventBufferSize = 8

type Provider struct {
	log      *slog.Logger
	users    repositories.IUserRepository
	profiles contract.IProfileRepository
	issuer   auth.TokenIssuer
	store    *CredentialStore
	events   chan *domain.Session
}

func NewProvider(log *slog.Logger, users repositories.IUserRepository,
	profiles contract.IProfileRepository, issuer auth.TokenIssuer,
	store *CredentialStore) *Provider {
	return &Provider{
		log:      log,
		users:    users,
		profiles: profiles,
		issuer:   issuer,
		store:    store,
		events:   make(chan *domain.Session, eventBufferSize),
	}
}

// Events delivers every auth transition after startup. A nil session
// means signed out.
func (p *Provider) Events() <-chan *domain.Session {
	return p.events
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (domain.Session, error) {
	// 1. Validate before hashing.
	if err := auth.ValidateSignUp(auth.SignUpRequest{Email: email, Password: password}); err != nil {
		return domain.Session{}, err
	}

	// 2. Hash and persist the account.
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.Session{}, err
	}
	userID, err := p.users.CreateUser(ctx, email, hash)
	if err != nil {
		return domain.Session{}, err
	}

	// 3. Every account gets a profile row immediately. The rest of the
	// system may assume it exists, though it still falls back gracefully.
	profile := domain.UserProfile{
		ID:        userID,
		Name:      domain.FallbackDisplayName(email),
		CreatedAt: time.Now().UTC(),
	}
	if err := p.profiles.Upsert(ctx, profile); err != nil {
		p.log.Warn("Profile creation failed after sign-up", "user", userID, "err", err)
	}

	return p.openSession(userID, email)
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	user, err := p.users.GetUserByEmail(ctx, email)
	if err != nil {
		// Generic failure to prevent user enumeration.
		return domain.Session{}, errors.ErrInvalidCredentials
	}
	match, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !match {
		return domain.Session{}, errors.ErrInvalidCredentials
	}
	return p.openSession(user.ID, user.Email)
}

func (p *Provider) SignOut(_ context.Context) error {
	if err := p.store.Clear(); err != nil {
		return err
	}
	p.emit(nil)
	p.log.Info("Signed out")
	return nil
}

// Restore resolves the persisted token into a session. Missing or
// expired credentials yield (nil, nil): logged out, not an error.
func (p *Provider) Restore(_ context.Context) (*domain.Session, error) {
	token, ok, err := p.store.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	claims, err := p.issuer.Validate(token)
	if err != nil {
		p.log.Info("Persisted credentials no longer valid", "err", err)
		_ = p.store.Clear()
		return nil, nil
	}
	return &domain.Session{
		UserID:          claims.UserID,
		Email:           claims.Email,
		IsAuthenticated: true,
	}, nil
}

func (p *Provider) openSession(userID, email string) (domain.Session, error) {
	token, err := p.issuer.Issue(userID, email)
	if err != nil {
		return domain.Session{}, err
	}
	if err := p.store.Save(token); err != nil {
		return domain.Session{}, err
	}

	sess := domain.Session{UserID: userID, Email: email, IsAuthenticated: true}
	p.emit(&sess)
	p.log.Info("Session opened", "user", userID)
	return sess, nil
}

func (p *Provider) emit(sess *domain.Session) {
	select {
	case p.events <- sess:
	default:
		p.log.Warn("Auth event dropped, consumer too slow")
	}
}
