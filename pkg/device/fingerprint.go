package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Fingerprint derives a stable, non-reversible identifier for a device. extra
// is optional. Each field is length-prefixed so no choice of field contents
// can make two different triples hash the same input.
func Fingerprint(userAgent, ip, extra string) string {
	h := sha256.New()
	for _, field := range [...]string{userAgent, ip, extra} {
		h.Write([]byte(strconv.Itoa(len(field))))
		h.Write([]byte{':'})
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DeviceName builds a human-readable name such as "Chrome on Windows" from a
// user agent.
func DeviceName(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}

	browser := determineBrowser(userAgent)
	platform := determinePlatform(userAgent)
	switch {
	case browser != "" && platform != "":
		return browser + " on " + platform
	case platform != "":
		return platform
	case browser != "":
		return browser + " Browser"
	}
	return "Unknown Device"
}

func determinePlatform(userAgent string) string {
	// Mobile first, their user agents also mention desktop systems
	if contains(userAgent, "iPhone") {
		return "iPhone"
	} else if contains(userAgent, "iPad") {
		return "iPad"
	} else if contains(userAgent, "Android") && (contains(userAgent, "Mobile") || contains(userAgent, "Pixel") || contains(userAgent, "SM-")) {
		if contains(userAgent, "Pixel") {
			return "Google Pixel"
		} else if contains(userAgent, "Samsung") || contains(userAgent, "SM-") {
			return "Samsung Phone"
		}
		return "Android Phone"
	} else if contains(userAgent, "Android") {
		return "Android Tablet"
	}

	if contains(userAgent, "CrOS") {
		return "Chromebook"
	} else if contains(userAgent, "Macintosh") || contains(userAgent, "Mac OS X") {
		return "macOS"
	} else if contains(userAgent, "Windows") {
		return "Windows"
	} else if contains(userAgent, "Linux") {
		return "Linux"
	}
	return ""
}

func determineBrowser(userAgent string) string {
	// Order matters: Edge and Opera carry "Chrome", Chrome carries "Safari"
	if contains(userAgent, "Edg/") || contains(userAgent, "Edge/") {
		return "Edge"
	} else if contains(userAgent, "OPR/") || contains(userAgent, "Opera") {
		return "Opera"
	} else if contains(userAgent, "Firefox") || contains(userAgent, "FxiOS") {
		return "Firefox"
	} else if contains(userAgent, "Chrome") || contains(userAgent, "CriOS") {
		return "Chrome"
	} else if contains(userAgent, "Safari") {
		return "Safari"
	}
	return ""
}

// contains is a case-insensitive substring check
func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
