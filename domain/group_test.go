package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_NewInviteCode_Shape(t *testing.T) {
	req := require.New(t)

	code := NewInviteCode()

	req.Len(code, InviteCodeLength)
	for _, r := range code {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		req.True(isAlnum, "unexpected rune %q in invite code", r)
	}
}

func Test_NewInviteCode_Varies(t *testing.T) {
	req := require.New(t)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		seen[NewInviteCode()] = struct{}{}
	}

	// Collisions over 50 draws from a 62^12 space mean a broken generator.
	req.Len(seen, 50)
}

func Test_FallbackDisplayName(t *testing.T) {
	req := require.New(t)

	req.Equal("alice", FallbackDisplayName("alice@example.com"))
	req.Equal("6ba7b810", FallbackDisplayName("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	req.Equal("bob", FallbackDisplayName("bob"))
}
