// Package redact scrubs sensitive material from strings before they are
// logged or echoed in error responses: connection strings, bearer tokens,
// secrets, SQL fragments, and personal identifiers have no business in a
// client-visible message.
package redact

import "regexp"

// Placeholders substituted for matched sensitive content.
const (
	RedactedCredential = "[REDACTED_CREDENTIAL]"
	RedactedToken      = "[REDACTED_TOKEN]"
	RedactedSQL        = "[REDACTED_SQL]"
	RedactedEmail      = "[REDACTED_EMAIL]"
	RedactedPath       = "[REDACTED_PATH]"
)

type redaction struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Order matters: credentials inside connection URLs must be caught before
// the path pattern rewrites the rest of the URL.
var redactions = []redaction{
	{regexp.MustCompile(`(?i)(postgres(ql)?|amqps?|mysql|redis)://[^@\s]+@`), RedactedCredential},
	{regexp.MustCompile(`(?i)(password|passwd|secret|jwt_secret)([=:\s]['"]?)[^'"&\s]{3,}`), RedactedCredential},
	{regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`), RedactedToken},
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/]{8,}`), RedactedToken},
	{regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)[\s\w,*()]+(?:FROM|INTO|SET|TABLE)(?:[\s\w,*()='"$]+)?`), RedactedSQL},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), RedactedEmail},
	{regexp.MustCompile(`(/[\w.-]+){2,}`), RedactedPath},
}

// String returns input with every sensitive pattern replaced by its
// placeholder.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range redactions {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}

	return result
}

// Error redacts an error's message. A nil error yields the empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
