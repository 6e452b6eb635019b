// Package auth handles password hashing, session tokens, Google OAuth,
// and the active-user context for the perception loop.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	saltBytes        = 16
	keyBytes         = 32
)

// ErrInvalidPassword is returned when a password does not match.
var ErrInvalidPassword = errors.New("auth: invalid password")

// HashPassword derives a PBKDF2-SHA256 hash, returned as "salt$hash"
// with both parts hex encoded.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keyBytes, sha256.New)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(key), nil
}

// VerifyPassword checks a password against a stored "salt$hash" value.
func VerifyPassword(stored, password string) error {
	parts := strings.SplitN(stored, "$", 2)
	if len(parts) != 2 {
		return errors.New("auth: malformed password hash")
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return errors.New("auth: malformed password salt")
	}
	want, err := hex.DecodeString(parts[1])
	if err != nil {
		return errors.New("auth: malformed password hash")
	}

	got := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, len(want), sha256.New)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrInvalidPassword
	}
	return nil
}
