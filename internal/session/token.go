package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes is the entropy of a bearer token: 256 bits.
const tokenBytes = 32

// NewToken returns a fresh bearer token: 32 bytes from the operating
// system CSPRNG, rendered as URL-safe base64 without padding. crypto/rand
// fills the whole buffer or errors, so there is no modulo bias and no
// partial token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes for token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
