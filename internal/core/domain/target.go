package domain

import (
	"regexp"
	"strings"
)

var ipv4Literal = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

// IsIPv4Literal reports whether s is a dotted-quad address such as "10.0.0.1".
func IsIPv4Literal(s string) bool {
	return ipv4Literal.MatchString(s)
}

// HostFromTarget strips an http(s) scheme and any path from a scan target.
// "https://example.com/login" becomes "example.com".
func HostFromTarget(target string) string {
	host := strings.TrimSpace(target)
	lower := strings.ToLower(host)
	switch {
	case strings.HasPrefix(lower, "https://"):
		host = host[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		host = host[len("http://"):]
	}
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	return host
}

// EmailDomain returns the lowercased part after '@', or "" when there is none.
func EmailDomain(sender string) string {
	parts := strings.SplitN(sender, "@", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(strings.Trim(parts[1], "<> ")))
}
