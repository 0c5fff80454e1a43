// Package redact masks secrets before they reach log output.
package redact

import "strings"

// Email keeps the first two runes of the local part and the domain.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := []rune(parts[0]), parts[1]
	if len(local) > 2 {
		return string(local[:2]) + "***@" + domain
	}
	return "***@" + domain
}

// Token keeps the last four characters of long tokens so two log lines can
// be correlated without exposing the value.
func Token(s string) string {
	if len(s) < 16 {
		return "[REDACTED_TOKEN]"
	}
	return "[REDACTED_TOKEN…" + s[len(s)-4:] + "]"
}

func Password() string { return "[REDACTED_PASSWORD]" }
