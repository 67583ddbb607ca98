package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Hash_And_Verify(t *testing.T) {
	req := require.New(t)
	password := "Sup3r-Secret-Passphrase!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := VerifyPassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = VerifyPassword("wrong-password", hash)
	req.NoError(err)
	req.False(match)

	_, err = VerifyPassword(password, "not-a-hash")
	req.Error(err)
}

func Test_Token_Roundtrip(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("test_secret_key_for_signing", time.Hour)

	token, err := issuer.Issue("user-123", "alice@example.com")
	req.NoError(err)

	claims, err := issuer.Validate(token)
	req.NoError(err)
	req.Equal("user-123", claims.UserID)
	req.Equal("alice@example.com", claims.Email)
}

func Test_Token_Expiry_And_Signature(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("test_secret_key_for_signing", -time.Minute)

	expired, err := issuer.Issue("user-123", "alice@example.com")
	req.NoError(err)
	_, err = issuer.Validate(expired)
	req.Error(err)

	other := NewTokenIssuer("a_different_secret_entirely", time.Hour)
	token, err := other.Issue("user-123", "alice@example.com")
	req.NoError(err)
	_, err = issuer.Validate(token)
	req.Error(err)
}

func Test_SignUp_Validation(t *testing.T) {
	tests := []struct {
		name    string
		request SignUpRequest
		wantErr bool
	}{
		{"Valid request", SignUpRequest{"test@example.com", "ComplexPass123!"}, false},
		{"Invalid email", SignUpRequest{"notanemail", "ComplexPass123!"}, true},
		{"Too short", SignUpRequest{"test@example.com", "Short1!"}, true},
		{"Missing digit", SignUpRequest{"test@example.com", "NoDigitPassword!"}, true},
		{"Missing special", SignUpRequest{"test@example.com", "NoSpecialChar123"}, true},
		{"Missing uppercase", SignUpRequest{"test@example.com", "nouppercase123!!"}, true},
		{"Too long", SignUpRequest{"test@example.com", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSignUp(tt.request)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
