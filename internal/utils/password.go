package utils

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted on registration.
const MinPasswordLength = 8

// ErrWeakPassword rejects passwords shorter than MinPasswordLength or
// longer than bcrypt can hash.
var ErrWeakPassword = errors.New("password must be 8 to 72 bytes long")

// CheckPassword applies the password policy.
func CheckPassword(plain string) error {
	if utf8.RuneCountInString(plain) < MinPasswordLength || len(plain) > 72 {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
