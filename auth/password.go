package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
)

// MinPasswordLength is the shortest password accepted.
const MinPasswordLength = 8

// bcrypt ignores everything past 72 bytes.
const maxPasswordLength = 72

var (
	// ErrIncorrectCredentials hides whether the email or the password was
	// wrong.
	ErrIncorrectCredentials = &apperr.Error{
		Code: apperr.EUnauthorized,
		Msg:  "your email or password is incorrect",
	}

	ErrShortPassword = &apperr.Error{
		Code:   apperr.EInvalid,
		Msg:    "passwords must be at least 8 characters long",
		Fields: map[string]string{"password": "must be at least 8 characters"},
	}

	ErrLongPassword = &apperr.Error{
		Code:   apperr.EInvalid,
		Msg:    "passwords must be at most 72 bytes long",
		Fields: map[string]string{"password": "must be at most 72 bytes"},
	}
)

// HashCost is bcrypt's default cost.
var HashCost = bcrypt.DefaultCost

// ValidatePassword checks the length rules for a new password.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrShortPassword
	}
	if len(password) > maxPasswordLength {
		return ErrLongPassword
	}
	return nil
}

// HashPassword validates and hashes a new password.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword reports ErrIncorrectCredentials when password does not
// match hash.
func ComparePassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrIncorrectCredentials
	}
	return &apperr.Error{Code: apperr.EUnauthorized, Msg: ErrIncorrectCredentials.Msg, Err: err}
}
