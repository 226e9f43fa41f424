package validation

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

// ValidateRelayURL accepts ws:// and wss:// URLs with a host.
func ValidateRelayURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid URL scheme %q (must be ws or wss)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateListenAddress accepts host:port where host may be empty and the
// port is numeric.
func ValidateListenAddress(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if host != "" && strings.ContainsAny(host, " /") {
		return fmt.Errorf("invalid host %q", host)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}

// ValidateSecret rejects secrets that cannot survive the AUTH text message
// intact: empty, or containing control characters.
func ValidateSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("secret is required")
	}
	for _, r := range secret {
		if unicode.IsControl(r) {
			return fmt.Errorf("secret must not contain control characters")
		}
	}
	return nil
}

// ValidateOrigin accepts "*" or a bare host, optionally with a port.
func ValidateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	if origin == "" || strings.Contains(origin, "://") || strings.ContainsAny(origin, " /") {
		return fmt.Errorf("invalid origin %q (expected * or host[:port])", origin)
	}
	return nil
}

// ValidateRange checks min <= v <= max.
func ValidateRange(v, min, max int, fieldName string) error {
	if v < min || v > max {
		return fmt.Errorf("%s must be within %d..%d", fieldName, min, max)
	}
	return nil
}
