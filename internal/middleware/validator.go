package middleware

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var judgeIDPattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateURL validates repository and document references.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (allowed: http, https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}

	// the reference is forwarded to the workflow platform; keep internal hosts out of it
	host := strings.ToLower(u.Hostname())
	blocked := []string{"localhost", "127.0.0.1", "0.0.0.0", "::1"}
	for _, b := range blocked {
		if host == b {
			return fmt.Errorf("localhost/internal IPs are not allowed")
		}
	}
	if strings.HasPrefix(host, "10.") ||
		strings.HasPrefix(host, "192.168.") ||
		strings.HasPrefix(host, "172.16.") ||
		strings.HasPrefix(host, "172.31.") {
		return fmt.Errorf("private IP ranges are not allowed")
	}

	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateUserID: user ids are opaque (usually an email) but bounded.
func ValidateUserID(id string) error {
	if len(id) > 254 {
		return fmt.Errorf("user_id too long (max 254 chars)")
	}
	if strings.ContainsAny(id, "\r\n\t") {
		return fmt.Errorf("user_id contains control characters")
	}
	return nil
}

// ValidateJudgeID validates judge id format
func ValidateJudgeID(id string) error {
	if !judgeIDPattern.MatchString(id) {
		return fmt.Errorf("invalid judge id format (lowercase alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}
