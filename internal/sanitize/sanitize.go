// Package sanitize redacts secret-shaped substrings from text that is about
// to become a log event, a span attribute, or an error message.
//
// Three independent patterns are covered:
//   - bearer-style tokens following the "Bearer " scheme prefix
//   - self-describing token payloads (three dot-separated base64url
//     segments whose first segment starts with "eyJ", the base64url
//     encoding of `{"`) anywhere in the text
//   - "header: value" pairs for a fixed set of sensitive header names,
//     matched case-insensitively
//
// Sanitize must always run before truncation; a truncated secret is still
// a secret.
package sanitize

import "regexp"

// Redacted replaces every secret match in the output.
const Redacted = "[REDACTED]"

// MaxMessageLen bounds error and log messages produced from response bodies.
const MaxMessageLen = 1000

var (
	bearerPattern = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-._~+/_]+=*`)

	// Token-shaped substrings: eyJ marks a base64url-encoded `{"` header.
	tokenPattern = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)

	// Longer names first so the alternation does not stop at a substring.
	headerPattern = regexp.MustCompile(`(?i)\b(ocp-apim-subscription-key|x-amz-security-token|proxy-authorization|authorization|x-api-key|api-key)(\s*:\s*)[^\r\n,;]+`)

	// Cookie values are themselves ;-delimited pair lists, so the match
	// must run to end of line or a later pair would survive.
	cookiePattern = regexp.MustCompile(`(?i)\b(set-cookie|cookie)(\s*:\s*)[^\r\n]+`)
)

// Sanitize returns s with every recognized secret replaced by Redacted.
// The input is never mutated; a string without matches is returned as-is.
func Sanitize(s string) string {
	s = bearerPattern.ReplaceAllString(s, "Bearer "+Redacted)
	s = tokenPattern.ReplaceAllString(s, Redacted)
	s = headerPattern.ReplaceAllString(s, "${1}${2}"+Redacted)
	s = cookiePattern.ReplaceAllString(s, "${1}${2}"+Redacted)
	return s
}

// Truncate caps s at n bytes, appending a marker when anything was cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}

// Clean sanitizes then truncates to MaxMessageLen, in that order.
func Clean(s string) string {
	return Truncate(Sanitize(s), MaxMessageLen)
}
