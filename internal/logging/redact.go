package logging

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// snippetLimit caps how much message content reaches the logs.
const snippetLimit = 48

// Customer-supplied text routinely carries contact details and credentials.
var sensitivePatterns = []*regexp.Regexp{
	// Email addresses
	regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),

	// Phone numbers with an optional country code
	regexp.MustCompile(`\+?\d[\d ()-]{7,}\d`),

	// Payment card numbers (13-19 digits, optional separators)
	regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`),

	// Bearer tokens and key=value secrets
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`),
	regexp.MustCompile(`(?i)(key|token|secret|password)[=:]\s*["']?[^\s"']{8,}["']?`),
}

// Redact replaces contact details and secrets in a string.
func Redact(s string) string {
	result := s
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// Snippet returns a redacted, single-line, length-capped form of message
// content suitable for a log field.
func Snippet(s string) string {
	s = strings.Join(strings.Fields(Redact(s)), " ")
	if utf8.RuneCountInString(s) <= snippetLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:snippetLimit]) + "..."
}
