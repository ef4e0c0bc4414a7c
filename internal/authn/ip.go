package authn

import (
	"net"
	"net/http"
	"strings"
)

// unknownIP keys attempts whose source address could not be determined.
// They still share one backoff bucket rather than bypassing it.
const unknownIP = "0.0.0.0"

// ExtractClientIP resolves the client address for rate limiting. The
// service sits behind a reverse proxy in production, so proxy headers are
// consulted first: X-Real-IP, then the first element of X-Forwarded-For,
// then the socket's remote address. Header values that do not parse as an
// IP are skipped rather than trusted.
func ExtractClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(strings.TrimSpace(r.RemoteAddr)) != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}

	return unknownIP
}
