package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashText returns the SHA256 hex digest of the trimmed text. Texts that
// differ only by surrounding whitespace hash identically.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// HashStrings returns a SHA256 hash of the provided strings with newline
// separators.
func HashStrings(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
