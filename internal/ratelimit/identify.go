package ratelimit

import (
	"net/http"
	"strings"
)

// Header names consulted by Identify, in priority order.
const (
	HeaderAPIKey       = "X-API-Key"
	HeaderRealIP       = "X-Real-IP"
	HeaderForwardedFor = "X-Forwarded-For"

	// Anonymous is the identifier of callers that present none of the headers.
	Anonymous = "anonymous"
)

// Identify derives the rate-limit identifier of a request: the API key, else
// the real IP, else the first forwarded-for entry, else Anonymous.
func Identify(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); key != "" {
		return key
	}
	if ip := strings.TrimSpace(r.Header.Get(HeaderRealIP)); ip != "" {
		return ip
	}
	if xff := r.Header.Get(HeaderForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return Anonymous
}
