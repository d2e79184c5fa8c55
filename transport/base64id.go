package transport

import (
	"crypto/rand"
	"encoding/base64"
)

const Base64IDSize = 15

// GenerateBase64ID creates a URL-safe random identifier for a new connection.
func GenerateBase64ID(size int) (string, error) {
	b := make([]byte, size)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
