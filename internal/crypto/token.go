package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// NewRandomToken returns an unpredictable URL-safe token for single-use
// verification and reset links.
func NewRandomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
