package utils

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// NormalizeSubject normalizes an email subject for threading
func NormalizeSubject(subject string) string {
	subject = strings.ToLower(strings.TrimSpace(subject))

	prefixes := []string{"re:", "fwd:", "fw:", "aw:", "wg:"}
	for {
		trimmed := false
		for _, prefix := range prefixes {
			if strings.HasPrefix(subject, prefix) {
				subject = strings.TrimSpace(strings.TrimPrefix(subject, prefix))
				trimmed = true
				break
			}
		}
		if !trimmed {
			break
		}
	}

	return subject
}

// GenerateThreadID generates a unique thread ID from the normalized subject
func GenerateThreadID(normalizedSubject string) string {
	hash := sha256.Sum256([]byte(normalizedSubject))
	return fmt.Sprintf("%x", hash[:16])
}

// ReplySubject prefixes a subject with "Re:" unless it already carries one.
func ReplySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// ForwardSubject prefixes a subject with "Fwd:" unless it already carries a
// forward marker.
func ForwardSubject(subject string) string {
	lower := strings.ToLower(subject)
	if strings.HasPrefix(lower, "fwd:") || strings.HasPrefix(lower, "fw:") {
		return subject
	}
	return "Fwd: " + subject
}

// Preview condenses text into a short thread-list preview.
func Preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")

	if len(text) > 150 {
		// Try to break at a word boundary
		if idx := strings.LastIndex(text[:150], " "); idx > 0 {
			return text[:idx] + "..."
		}
		return text[:150] + "..."
	}
	return text
}
