// Package auth holds credential hashing, token issuing and sign-up
// validation for the reference identity provider.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"groupmeet/errors"
)

const tokenIssuer = "groupmeet"

// SessionClaims is the payload carried inside a session token. The email
// travels with the token so a restored session does not need a directory
// round-trip.
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) TokenIssuer {
	return TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token for the user.
func (i TokenIssuer) Issue(userID, email string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return signed, nil
}

// Validate checks signature and expiry and returns the claims.
func (i TokenIssuer) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}
