package client

import (
	"net"
	"net/http"
	"strings"
)

// DeviceIDHeader carries an optional client-side device identifier that is
// mixed into the device fingerprint.
const DeviceIDHeader = "X-Device-ID"

// RequestContext is the caller information threaded explicitly into every
// recovery, device and audit call.
type RequestContext struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	DeviceID  string `json:"device_id,omitempty"`
}

// FromRequest extracts the request context from an HTTP request. The first
// X-Forwarded-For entry wins, then X-Real-IP, then the remote address.
func FromRequest(r *http.Request) RequestContext {
	return RequestContext{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
		DeviceID:  strings.TrimSpace(r.Header.Get(DeviceIDHeader)),
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
		return xrip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
