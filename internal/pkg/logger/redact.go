package logger

import (
	"regexp"
	"strings"
)

var (
	emailRegex    = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	lineUserRegex = regexp.MustCompile(`U[0-9a-f]{32}`)
)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") {
		return RedactEmail(val)
	}
	if strings.Contains(key, "recipient") || strings.Contains(key, "user_id") {
		return RedactUserID(val)
	}
	// Redact any embedded identifiers in generic fields
	val = emailRegex.ReplaceAllStringFunc(val, RedactEmail)
	return lineUserRegex.ReplaceAllStringFunc(val, RedactUserID)
}

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactUserID keeps the first four characters of a LINE user id.
// "U4af4980629..." → "U4af***"
func RedactUserID(id string) string {
	if len(id) <= 4 {
		return "***"
	}
	return id[:4] + "***"
}
