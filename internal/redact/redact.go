// Package redact removes personally identifiable information from free text.
package redact

import "regexp"

// Token replaces every redacted match
const Token = "[REDACTED]"

// Longest pattern first so a DDD-DDD-DDDD number is replaced as a whole and
// its trailing DDD-DDDD is never matched on its own.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`),
	regexp.MustCompile(`\b\d{3}-\d{4}\b`),
}

// Redact replaces phone-number shaped substrings (DDD-DDDD and DDD-DDD-DDDD)
// with Token. Text without matches is returned unchanged.
func Redact(text string) string {
	out := text
	for _, re := range phonePatterns {
		out = re.ReplaceAllLiteralString(out, Token)
	}
	return out
}

// Count returns how many substrings Redact would replace
func Count(text string) int {
	n := 0
	rest := text
	for _, re := range phonePatterns {
		n += len(re.FindAllStringIndex(rest, -1))
		rest = re.ReplaceAllLiteralString(rest, Token)
	}
	return n
}
