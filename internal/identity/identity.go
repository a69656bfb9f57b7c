// Package identity derives stable pseudonymous user identifiers from a
// caller's network origin. There is no login; the origin address is the only
// identity signal available.
package identity

import (
	"net"
	"net/http"
	"regexp"
	"strings"
)

const (
	// UserIDPrefix tags every derived identifier so origin-derived IDs are
	// recognizable in storage and logs.
	UserIDPrefix = "ip-"

	// FallbackUserID is returned when no usable origin is available.
	FallbackUserID = UserIDPrefix + "unknown"

	maxUserIDLen    = 128
	maxSessionIDLen = 64
)

var (
	separatorRuns  = regexp.MustCompile(`[^a-z0-9]+`)
	sessionIDChars = regexp.MustCompile(`[^a-zA-Z0-9-]`)
)

// Resolve turns a raw network-origin string into a normalized, storage-safe
// user identifier. It is pure and total: any input yields a usable ID.
func Resolve(requestOrigin string) string {
	normalized := strings.ToLower(strings.TrimSpace(requestOrigin))
	normalized = separatorRuns.ReplaceAllString(normalized, "-")
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		return FallbackUserID
	}
	return SanitizeUserID(UserIDPrefix + normalized)
}

// FromRequest resolves the user ID for an inbound HTTP request, preferring
// the first X-Forwarded-For entry over the raw connection address.
func FromRequest(r *http.Request) string {
	return Resolve(OriginFromRequest(r))
}

// OriginFromRequest extracts the caller's network origin from a request.
func OriginFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SanitizeUserID trims and length-caps a user identifier. Returns "" for
// unusable input; callers treat that as an invalid-identifier error.
func SanitizeUserID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > maxUserIDLen {
		id = id[:maxUserIDLen]
	}
	return id
}

// SanitizeSessionID strips everything outside [A-Za-z0-9-] and length-caps
// the result. Garbled client tokens sanitize to "" and are treated as absent.
func SanitizeSessionID(id string) string {
	id = sessionIDChars.ReplaceAllString(id, "")
	if len(id) > maxSessionIDLen {
		id = id[:maxSessionIDLen]
	}
	return id
}
