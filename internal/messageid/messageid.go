// Package messageid converts between RFC 5322 Message-ID values and
// URL-safe slugs. UIDs are folder-relative and shift under expunges, so
// permalinks carry the Message-ID instead, encoded to survive the
// slashes and angle brackets such values contain.
package messageid

import (
	"encoding/base64"
	"strings"
)

// Encode turns a Message-ID into a URL-safe slug. Surrounding angle
// brackets are stripped first so both spellings of the same ID encode
// identically.
func Encode(messageID string) string {
	bare := strings.Trim(messageID, "<>")
	return base64.RawURLEncoding.EncodeToString([]byte(bare))
}

// Decode turns a slug back into the bare Message-ID (no angle
// brackets). Returns false for input that is not valid base64url.
func Decode(slug string) (string, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(slug)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// IsNumericUID reports whether a path identifier is a plain UID rather
// than an encoded Message-ID slug.
func IsNumericUID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
