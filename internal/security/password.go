package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashPassword digests "normalizedEmail:password" with SHA-256 and returns
// the hex string. The email acts as the salt, so the same password yields
// different hashes for different accounts, and the digest stays deterministic
// for lookup-free comparison. Callers must normalize the email first.
func HashPassword(normalizedEmail, password string) string {
	sum := sha256.Sum256([]byte(normalizedEmail + ":" + password))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword recomputes the digest and compares it to the stored hash in
// constant time.
func VerifyPassword(storedHash, normalizedEmail, password string) bool {
	attempted := HashPassword(normalizedEmail, password)
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(attempted)) == 1
}
