package threat

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Request is the subset of an inbound HTTP request the pipeline inspects.
type Request struct {
	// IP is the resolved client address. When empty, the pipeline derives it
	// with ClientIP from Header and RemoteAddr.
	IP         string
	RemoteAddr string
	Method     string
	Path       string
	RawQuery   string
	UserAgent  string
	Header     http.Header
}

// FromHTTP builds a Request from r.
func FromHTTP(r *http.Request) Request {
	return Request{
		IP:         ClientIP(r.Header, r.RemoteAddr),
		RemoteAddr: r.RemoteAddr,
		Method:     r.Method,
		Path:       r.URL.Path,
		RawQuery:   r.URL.RawQuery,
		UserAgent:  r.UserAgent(),
		Header:     r.Header,
	}
}

var forwardedHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP", "X-Client-IP"}

// UnknownIP is returned by ClientIP when no usable address is present.
const UnknownIP = "unknown"

// ClientIP resolves the client address. Proxy headers are consulted in the
// order CF-Connecting-IP, X-Forwarded-For, X-Real-IP, X-Client-IP; for each
// only the first comma-separated entry is considered and it must parse as an
// IP. The remote address is the fallback.
func ClientIP(h http.Header, remoteAddr string) string {
	for _, name := range forwardedHeaders {
		v := h.Get(name)
		if v == "" {
			continue
		}
		first, _, _ := strings.Cut(v, ",")
		first = strings.TrimSpace(first)
		if addr, err := netip.ParseAddr(first); err == nil {
			return addr.String()
		}
	}

	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.String()
	}
	return UnknownIP
}
