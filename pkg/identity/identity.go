// Package identity adapts the primary credential store. The recovery flow
// only needs to find an account by email and replace its credential.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrUserNotFound = errors.New("user not found")

// Store is the identity store the recovery flow calls into
type Store interface {
	LookupUserByEmail(ctx context.Context, email string) (uuid.UUID, error)
	ResetCredential(ctx context.Context, userID uuid.UUID, newCredential string) error
}

// HashCredential bcrypt-hashes a plaintext credential for storage
func HashCredential(credential string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CredentialMatches reports whether credential hashes to hashed
func CredentialMatches(hashed, credential string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(credential)) == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
