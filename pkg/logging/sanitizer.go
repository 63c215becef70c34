// Package logging provides helpers for keeping secrets and oversized
// payloads out of log output.
package logging

import (
	"regexp"
)

const (
	// MaxLoggedTextLength caps free-form text (questions, engine errors)
	// in log fields.
	MaxLoggedTextLength = 200
	// RedactedText is the replacement text for sensitive data.
	RedactedText = "[REDACTED]"
)

var (
	// Bearer tokens, as echoed back by HTTP error responses.
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_.]+`)

	// key=value style API keys and tokens.
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|token|key)=[A-Za-z0-9-_]{20,}`)

	// user:pass@host credentials embedded in URLs.
	urlCredsPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// SanitizeError renders an error for logging with credentials removed.
// LLM and engine transport errors can echo the request, including the
// Authorization header, so never log them verbatim.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return sanitize(err.Error())
}

// SanitizeURL removes embedded credentials from a URL before logging.
func SanitizeURL(url string) string {
	if url == "" {
		return ""
	}
	return urlCredsPattern.ReplaceAllString(url, "://"+RedactedText+"@"+RedactedText)
}

// Truncate shortens a string to maxLen and adds an ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateText applies the default cap for free-form log fields, with
// secrets removed.
func TruncateText(s string) string {
	return Truncate(sanitize(s), MaxLoggedTextLength)
}

func sanitize(s string) string {
	out := bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	out = apiKeyPattern.ReplaceAllString(out, "${1}="+RedactedText)
	out = urlCredsPattern.ReplaceAllString(out, "://"+RedactedText+"@"+RedactedText)
	return out
}
