// Package checksum computes the content digests used for storage ownership
// checks and note ETags.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// String returns the digest of s.
func String(s string) string {
	return Sum([]byte(s))
}
