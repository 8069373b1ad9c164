package randtoken

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a hex-encoded random token built from n bytes of
// cryptographically secure randomness.
func New(n int) (string, error) {
	bb := make([]byte, n)

	if _, err := rand.Read(bb); err != nil {
		return "", err
	}

	return hex.EncodeToString(bb), nil
}
