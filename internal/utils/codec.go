package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const (
	// DerivedCodeLength is the size of hash-derived short codes.
	DerivedCodeLength = 8

	// MaxAliasLength bounds user-supplied aliases.
	MaxAliasLength = 16
)

// DeriveShortCode maps a long URL to its short code: SHA-256 of the trimmed
// URL, base64url without padding, truncated to the first 8 characters.
// Deterministic, so resubmitting the same URL yields the same code. Truncation
// leaves a small collision risk across unrelated URLs, accepted for brevity.
func DeriveShortCode(longURL string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(longURL)))
	encoded := base64.RawURLEncoding.EncodeToString(hash[:])
	return encoded[:DerivedCodeLength]
}

// ValidateAlias reports whether a custom alias is acceptable: at most 16
// characters, all from [A-Za-z0-9]. The empty string means "no alias
// requested" and is handled by the caller, not here.
func ValidateAlias(alias string) bool {
	if len(alias) > MaxAliasLength {
		return false
	}

	for _, c := range alias {
		if !isAlphanumeric(c) {
			return false
		}
	}

	return true
}

func isAlphanumeric(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
