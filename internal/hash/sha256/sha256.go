// Package sha256 digests report content for integrity checks and HTTP ETags.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hasher implements report.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ETag formats a hex digest as a strong HTTP entity tag.
func ETag(digest string) string {
	return fmt.Sprintf("%q", "sha256-"+digest)
}
