// Package hasher produces one-way digests of security-question answers.
//
// Answers are normalized before hashing (surrounding whitespace trimmed,
// lower-cased) so " Paris" and "paris" compare equal while different answers
// do not. Callers reject empty answers before hashing.
package hasher

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Normalize trims surrounding whitespace and lower-cases an answer
func Normalize(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// Hash returns the hex encoded SHA-256 digest of the normalized answer
func Hash(answer string) string {
	sum := sha256.Sum256([]byte(Normalize(answer)))
	return hex.EncodeToString(sum[:])
}

// Matches reports whether answer hashes to storedHash
func Matches(answer, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(answer)), []byte(storedHash)) == 1
}
