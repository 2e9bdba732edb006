package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomString returns length random bytes hex encoded, so the result has
// twice as many characters.
func RandomString(length int) string {
	bytes := make([]byte, length)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
