// Package imagehash computes content fingerprints for uploaded images.
package imagehash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// ContentHash digests the full byte stream from r and returns the
// hex-encoded SHA-256.  The reader is consumed in chunks, never buffered
// whole.  Identical bytes always produce the identical hash; the hash is
// used for duplicate detection only, not for security.
func ContentHash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("while hashing image content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
