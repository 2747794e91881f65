// Package sha256 provides SHA-256 digest utilities.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Hasher implements watch.Hasher using SHA-256.
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

// HashString hashes the UTF-8 bytes of s and returns a hex digest.
func (h *Hasher) HashString(s string) (string, error) {
	return h.Hash([]byte(s))
}

// HashReader streams r through the digest without buffering the payload and
// returns the hex digest plus the number of bytes consumed. Used for large
// documents where storing the content is not an option.
func (h *Hasher) HashReader(r io.Reader) (string, int64, error) {
	digest := sha256.New()
	n, err := io.Copy(digest, r)
	if err != nil {
		return "", n, fmt.Errorf("stream into digest: %w", err)
	}
	return hex.EncodeToString(digest.Sum(nil)), n, nil
}
