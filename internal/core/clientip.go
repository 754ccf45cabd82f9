// AngelaMos | 2026
// clientip.go

package core

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the normalized source address of r. The proxy appends
// the peer it saw last, so the rightmost X-Forwarded-For entry is used.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if ip := NormalizeIP(ips[len(ips)-1]); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := NormalizeIP(xri); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	if ip := NormalizeIP(host); ip != "" {
		return ip
	}
	return host
}

// NormalizeIP maps IPv4-in-IPv6 to plain IPv4 and drops zones so one
// client always produces the same key. Unparseable input yields "".
func NormalizeIP(raw string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return addr.Unmap().WithZone("").String()
}
