package security

import (
	"net/url"
	"strings"
)

// Redacted replaces sensitive values in logs and config dumps.
const Redacted = "[REDACTED]"

// sensitiveKeyParts mark payload keys whose values never reach the logs.
var sensitiveKeyParts = []string{"phone", "email", "id", "token", "secret", "password"}

// IsSensitiveKey reports whether a payload key looks like it carries contact
// details or credentials.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// RedactPayload returns a shallow copy of payload that is safe to log.
// Nested objects are redacted recursively.
func RedactPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}

	out := make(map[string]any, len(payload))
	for key, value := range payload {
		if IsSensitiveKey(key) {
			out[key] = Redacted
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[key] = RedactPayload(nested)
			continue
		}
		out[key] = value
	}
	return out
}

// MaskSecret keeps the last four characters of long secrets so operators can
// tell two values apart without exposing either.
func MaskSecret(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return Redacted
	default:
		return strings.Repeat("*", 8) + secret[len(secret)-4:]
	}
}

// MaskURLCredentials hides the password in a storage URL such as
// redis://:pass@host:6379/0. Unparseable values are fully redacted.
func MaskURLCredentials(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return Redacted
	}
	if u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "xxxxx")
	return u.String()
}
