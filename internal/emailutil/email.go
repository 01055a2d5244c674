package emailutil

import (
	"regexp"
	"strings"
)

// pattern accepts anything shaped like local@domain.tld with no whitespace
// and exactly the '@' separating local part and domain.
var pattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValid reports whether email looks like a deliverable address.
// The value is checked as typed; callers must not trim it first.
func IsValid(email string) bool {
	return pattern.MatchString(email)
}

// Normalize normalizes an email address for consistent comparison
// by converting to lowercase and trimming whitespace
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ExtractDomain extracts domain from email address
func ExtractDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// Redact hides the local part of an address so it can be logged.
func Redact(email string) string {
	domain := ExtractDomain(Normalize(email))
	if domain == "" {
		return "***"
	}
	return "***@" + domain
}
