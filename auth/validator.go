package auth

import (
	"unicode"

	"github.com/go-playground/validator/v10"

	"groupmeet/errors"
)

var validate = validator.New()

type SignUpRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=12,max=72"`
}

// ValidateSignUp checks email shape and password complexity before any
// expensive hashing happens.
func ValidateSignUp(req SignUpRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if !isComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

// isComplex requires at least one upper, lower, digit and special rune.
func isComplex(password string) bool {
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsNumber(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && digit && special
}
