package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenPrefix makes session tokens recognizable in logs and support dumps
// without revealing anything about their contents.
const tokenPrefix = "mpn_"

// RandomTokenGenerator issues opaque session tokens: a service prefix plus
// url-safe base64 over crypto/rand entropy.
type RandomTokenGenerator struct {
	Size int
}

func (g RandomTokenGenerator) NewToken() (string, error) {
	size := g.Size
	if size <= 0 {
		size = 32
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: entropy read failed: %w", err)
	}
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
