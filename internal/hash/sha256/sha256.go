// Package sha256 derives content-addressed archive keys.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements crawler.Hasher using SHA-256. Digests are hex encoded
// and optionally shortened so archive paths stay readable.
type Hasher struct {
	length int
}

// New returns a hasher producing the full 64-character digest.
func New() *Hasher {
	return &Hasher{}
}

// NewTruncated returns a hasher that keeps the first n hex characters.
// Values outside (0, 64) keep the full digest.
func NewTruncated(n int) *Hasher {
	return &Hasher{length: n}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if h.length > 0 && h.length < len(digest) {
		digest = digest[:h.length]
	}
	return digest, nil
}
