// Package util holds small string helpers shared by the HTTP and provider layers.
package util

import (
	"net/url"
	"strings"
)

// IsAbsoluteHTTPURL reports whether raw parses as an http or https URL with a host.
func IsAbsoluteHTTPURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}

// JoinURL appends suffix to base, collapsing a trailing slash on base.
func JoinURL(base, suffix string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if suffix == "" {
		return base
	}
	if !strings.HasPrefix(suffix, "/") && !strings.HasPrefix(suffix, "?") {
		suffix = "/" + suffix
	}
	return base + suffix
}

// NormalizeOrigin trims whitespace and any trailing slash so origins compare exactly.
func NormalizeOrigin(origin string) string {
	return strings.TrimRight(strings.TrimSpace(origin), "/")
}

// HideAPIKey keeps a short prefix and suffix of key for log output.
func HideAPIKey(key string) string {
	keep := 0
	switch n := len(key); {
	case n > 8:
		keep = 4
	case n > 4:
		keep = 2
	case n > 2:
		keep = 1
	default:
		return key
	}
	return key[:keep] + "..." + key[len(key)-keep:]
}

var sensitiveQueryMarkers = []string{"api-key", "apikey", "api_key", "token", "secret"}

// MaskSensitiveQuery hides credential-looking values in a raw query string.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	pairs := strings.Split(raw, "&")
	for i, pair := range pairs {
		name, value, _ := strings.Cut(pair, "=")
		decodedName, errName := url.QueryUnescape(name)
		if errName != nil {
			decodedName = name
		}
		if !isSensitiveQueryName(decodedName) {
			continue
		}
		decodedValue, errValue := url.QueryUnescape(value)
		if errValue != nil {
			decodedValue = value
		}
		pairs[i] = name + "=" + url.QueryEscape(HideAPIKey(strings.TrimSpace(decodedValue)))
	}
	return strings.Join(pairs, "&")
}

func isSensitiveQueryName(name string) bool {
	name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), "[]")
	if name == "key" {
		return true
	}
	for _, marker := range sensitiveQueryMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}
