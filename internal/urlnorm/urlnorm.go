// Package urlnorm canonicalizes article URLs and derives the stable
// fingerprint used for deduplication and cache keys.
package urlnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Normalize canonicalizes a URL: http is upgraded to https, the host is
// lowercased, the fragment is dropped and trailing slashes are trimmed from
// the path. The query string is preserved as-is.
func Normalize(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if parsed.Scheme == "http" {
		parsed.Scheme = "https"
	}
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	parsed.Fragment = ""
	return parsed.String(), nil
}

// Fingerprint returns the SHA-256 hex digest of the normalized URL. When the
// URL does not parse the raw string is hashed instead, so a fingerprint is
// always available.
func Fingerprint(raw string) string {
	normalized, err := Normalize(raw)
	if err != nil {
		normalized = raw
	}
	return HashKey(normalized)
}

// HashKey hashes an arbitrary string to a hex digest. Exposed for cache key
// derivation, which hashes the URL exactly as given.
func HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
