package identity

import (
	"fmt"
	"os"
	"strings"
)

// CredentialStore persists the session token across restarts in a
// mode-0600 file. Its contents are opaque to everything but the
// provider.
type CredentialStore struct {
	path string
}

func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

func (s *CredentialStore) Save(token string) error {
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	return nil
}

// Load returns the persisted token, or ok=false when none is stored.
func (s *CredentialStore) Load() (string, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("loading credentials: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", false, nil
	}
	return token, true, nil
}

func (s *CredentialStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}
