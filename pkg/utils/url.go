package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var schemePrefix = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?`)

const trailingPunctuation = ".,);:!?"

// Canonicalize maps a raw calendar link to the key used for deduplication.
// Surface variants of the same link (scheme, www., host case, one trailing
// slash, trailing sentence punctuation) collapse to the same key. The path is
// left untouched.
func Canonicalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = schemePrefix.ReplaceAllString(s, "")
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimRight(s, trailingPunctuation)

	host, path, found := strings.Cut(s, "/")
	host = strings.ToLower(host)
	if !found {
		return host
	}
	return host + "/" + path
}

// EnsureScheme returns rawURL with an https:// prefix when it has none, so
// links harvested without a scheme can be opened by a browser.
func EnsureScheme(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s
	}
	return "https://" + s
}

// HashURL creates a SHA256 hash of a string.
// This is useful for creating consistent, safe keys for Redis.
func HashURL(rawURL string) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	return hex.EncodeToString(h.Sum(nil))
}
