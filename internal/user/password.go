package user

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"attendance/internal/apperr"
)

// HashPassword returns the bcrypt hash of a plain password.
func HashPassword(plain string) (string, error) {
	if len(plain) < 8 {
		return "", apperr.Invalid("password", "Password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored hash.
func (u User) CheckPassword(plain string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain))
	return err == nil
}

// SetPassword hashes plain onto u.
func (u *User) SetPassword(plain string) error {
	hash, err := HashPassword(plain)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

var errBadCredentials = apperr.New(apperr.ErrUnauthorized, "Invalid email or password")

// IsBadCredentials reports a failed login.
func IsBadCredentials(err error) bool { return errors.Is(err, errBadCredentials) }
