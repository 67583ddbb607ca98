package identity

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"groupmeet/auth"
	"groupmeet/errors"
	"groupmeet/mocks"
	"groupmeet/repositories"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "ComplexPass123!"
)

type providerFixture struct {
	provider *Provider
	profiles repositories.ProfileRepository
	store    *CredentialStore
}

func setup(t *testing.T) providerFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	users := repositories.NewUserRepository(db, log)
	profiles := repositories.NewProfileRepository(db, log)
	store := NewCredentialStore(filepath.Join(t.TempDir(), "credentials"))
	issuer := auth.NewTokenIssuer("test_secret_key_for_signing", time.Hour)

	return providerFixture{
		provider: NewProvider(log, users, profiles, issuer, store),
		profiles: profiles,
		store:    store,
	}
}

func Test_SignUp_Creates_Account_Profile_And_Session(t *testing.T) {
	req := require.New(t)
	f := setup(t)
	ctx := context.Background()

	sess, err := f.provider.SignUp(ctx, testEmail, testPassword)
	req.NoError(err)
	req.True(sess.IsAuthenticated)
	req.Equal(testEmail, sess.Email)

	// The profile row appears alongside the account.
	profiles, err := f.profiles.GetByIDs(ctx, []string{sess.UserID})
	req.NoError(err)
	req.Len(profiles, 1)
	req.Equal("alice", profiles[0].Name)

	// The transition is delivered on the event stream.
	select {
	case event := <-f.provider.Events():
		req.NotNil(event)
		req.Equal(sess.UserID, event.UserID)
	default:
		t.Fatal("expected an auth event")
	}

	_, err = f.provider.SignUp(ctx, testEmail, testPassword)
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_SignUp_Surfaces_Account_Creation_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	users.EXPECT().CreateUser(gomock.Any(), testEmail, gomock.Any()).
		Return("", errors.Transient(fmt.Errorf("store unreachable")))
	// No profile row and no session when the account write fails; the
	// absence of an Upsert expectation enforces the former.
	profiles := mocks.NewMockIProfileRepository(ctrl)

	log := slog.Default()
	store := NewCredentialStore(filepath.Join(t.TempDir(), "credentials"))
	issuer := auth.NewTokenIssuer("test_secret_key_for_signing", time.Hour)
	provider := NewProvider(log, users, profiles, issuer, store)

	_, err := provider.SignUp(context.Background(), testEmail, testPassword)
	req.Error(err)
	req.True(errors.IsTransient(err))

	select {
	case event := <-provider.Events():
		t.Fatalf("unexpected auth event %v", event)
	default:
	}
}

func Test_SignIn_Checks_Credentials(t *testing.T) {
	req := require.New(t)
	f := setup(t)
	ctx := context.Background()

	_, err := f.provider.SignUp(ctx, testEmail, testPassword)
	req.NoError(err)

	sess, err := f.provider.SignIn(ctx, testEmail, testPassword)
	req.NoError(err)
	req.True(sess.IsAuthenticated)

	_, err = f.provider.SignIn(ctx, testEmail, "Wrong-Password-99!")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
	_, err = f.provider.SignIn(ctx, "nobody@example.com", testPassword)
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func Test_Restore_Roundtrip_And_SignOut(t *testing.T) {
	req := require.New(t)
	f := setup(t)
	ctx := context.Background()

	sess, err := f.provider.SignUp(ctx, testEmail, testPassword)
	req.NoError(err)

	restored, err := f.provider.Restore(ctx)
	req.NoError(err)
	req.NotNil(restored)
	req.Equal(sess.UserID, restored.UserID)
	req.Equal(testEmail, restored.Email)

	req.NoError(f.provider.SignOut(ctx))
	restored, err = f.provider.Restore(ctx)
	req.NoError(err)
	req.Nil(restored)
}

func Test_Restore_Without_Credentials_Is_Logged_Out(t *testing.T) {
	req := require.New(t)
	f := setup(t)

	restored, err := f.provider.Restore(context.Background())
	req.NoError(err)
	req.Nil(restored)
}

func Test_Restore_Discards_Garbage_Credentials(t *testing.T) {
	req := require.New(t)
	f := setup(t)

	req.NoError(f.store.Save("not-a-token"))
	restored, err := f.provider.Restore(context.Background())
	req.NoError(err)
	req.Nil(restored)

	// The bad token is cleared so it is not re-parsed every startup.
	_, ok, err := f.store.Load()
	req.NoError(err)
	req.False(ok)
}
