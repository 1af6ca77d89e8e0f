package middleware

import (
	"net"
	"net/http"
)

// ClientIP returns the caller address without a port. It relies on chi's
// RealIP middleware having already copied X-Forwarded-For or X-Real-IP into
// RemoteAddr. The result is empty when nothing usable is known.
func ClientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
