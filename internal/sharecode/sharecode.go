// Package sharecode issues join codes for public lists and tracks which
// codes are currently active.
package sharecode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// CodeLength is the fixed length of a share code.
const CodeLength = 8

// Charset deliberately omits 0/O and 1/I.
const Charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// MaxClaimAttempts bounds the collision-retry loop when issuing a code.
const MaxClaimAttempts = 10

// Generate returns a random 8-character code from the unambiguous charset.
// Uniqueness against active codes is the registry's job, not Generate's.
func Generate() string {
	buf := make([]byte, CodeLength)
	_, _ = rand.Read(buf)
	out := make([]byte, CodeLength)
	for i, b := range buf {
		out[i] = Charset[int(b)%len(Charset)]
	}
	return string(out)
}

// Valid reports whether raw has the shape of a share code.
func Valid(raw string) bool {
	if len(raw) != CodeLength {
		return false
	}
	for _, ch := range raw {
		if !strings.ContainsRune(Charset, ch) {
			return false
		}
	}
	return true
}

// Normalize upper-cases user-supplied code input.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// LinkFor formats the shareable join URL for a code.
func LinkFor(baseURL, code string) string {
	return fmt.Sprintf("%s/join/%s", strings.TrimRight(baseURL, "/"), code)
}

// CodeFromLink is the inverse of LinkFor. It accepts either a full join URL
// or a bare code.
func CodeFromLink(link string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(link), "/")
	if idx := strings.LastIndex(trimmed, "/join/"); idx >= 0 {
		trimmed = trimmed[idx+len("/join/"):]
	}
	code := Normalize(trimmed)
	if !Valid(code) {
		return "", fmt.Errorf("no share code in %q", link)
	}
	return code, nil
}
