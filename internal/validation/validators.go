// Package validation contains input validators for rule and config fields.
// Every value that can end up in an external tool invocation passes through
// here first, so the checks are strict about shell metacharacters.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// dangerousChars should never appear in values handed to the packet filter.
var dangerousChars = []string{";", "|", "&", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n", "\r", " "}

// ValidatePort validates a port carried as a non-empty numeric string (1-65535).
func ValidatePort(port string) error {
	if port == "" {
		return fmt.Errorf("port cannot be empty")
	}

	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port: %s (must be numeric)", port)
	}

	if n < 1 || n > 65535 {
		return fmt.Errorf("port out of range: %d (must be 1-65535)", n)
	}

	return nil
}

// ValidateIP validates an IPv4/IPv6 address. Empty is allowed for optional fields.
func ValidateIP(ip string) error {
	if ip == "" {
		return nil
	}

	if net.ParseIP(ip) == nil {
		return fmt.Errorf("invalid IP address: %s", ip)
	}

	return nil
}

// ValidateEnum checks that value is one of allowed (case-sensitive).
func ValidateEnum(field, value string, allowed ...string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}

	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %s (must be one of %s)", field, value, strings.Join(allowed, ", "))
}

// ValidateURL validates a panel link. Relative paths and http(s) URLs are accepted.
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %s", raw)
	}

	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme: %s", u.Scheme)
	}

	return nil
}

// CheckDangerous rejects values containing shell metacharacters.
func CheckDangerous(field, value string) error {
	for _, char := range dangerousChars {
		if strings.Contains(value, char) {
			return fmt.Errorf("%s contains dangerous character: %q", field, char)
		}
	}
	return nil
}
