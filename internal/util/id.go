package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier like "list_3f8a..." with 96 bits of
// entropy. Share codes are generated separately, they need a human-typable
// alphabet.
func NewID(prefix string) string {
	bytes := make([]byte, 12)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
