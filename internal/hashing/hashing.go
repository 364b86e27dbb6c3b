// Package hashing derives the content digest used as a cache-key component.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestLength is the length of the hex-encoded digest returned by Digest.
const DigestLength = sha256.Size * 2

// Digest returns the lowercase hex SHA-256 of the given text. The result is
// stable across processes; the empty string has a well-defined digest.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
