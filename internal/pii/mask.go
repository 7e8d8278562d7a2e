// Package pii masks personal identifiers before they reach the logs.
package pii

import "strings"

// MaskPhone keeps the first and last 2 characters (e.g. 99******77)
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}

	prefix := phone[:2]
	suffix := phone[len(phone)-2:]
	masked := strings.Repeat("*", len(phone)-4)
	return prefix + masked + suffix
}

// MaskEmail keeps the first character of the local part and the domain
// (e.g. u***@example.com)
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "****"
	}
	return local[:1] + strings.Repeat("*", max(len(local)-1, 3)) + "@" + domain
}
