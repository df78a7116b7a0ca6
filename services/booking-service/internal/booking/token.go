package booking

import (
	"crypto/rand"
	"encoding/base64"
)

const tokenBytes = 32

// NewCancelToken returns 256 random bits, base64url encoded without padding.
func NewCancelToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
