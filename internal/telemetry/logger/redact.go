package logger

import (
	"log/slog"
	"strings"
)

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"credential",
	"auth",
	"bearer",
	"apikey",
	"api_key",
}

// Keys whose values are command lines and get flag-level masking instead of
// full redaction.
var cmdlineKeys = map[string]bool{
	"cmd":     true,
	"cmdline": true,
	"argv":    true,
	"args":    true,
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data
// and redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		if strVal == "" {
			return a
		}
		if cmdlineKeys[strings.ToLower(a.Key)] {
			return slog.String(a.Key, RedactCmdline(strVal))
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// RedactCmdline masks the values of secret-looking flags in a space
// separated command line. Both "--token=abc" and "--token abc" are handled.
func RedactCmdline(cmdline string) string {
	fields := strings.Split(cmdline, " ")
	maskNext := false
	for i, f := range fields {
		if maskNext && f != "" {
			fields[i] = redactedValue
			maskNext = false
			continue
		}
		if !strings.HasPrefix(f, "-") {
			continue
		}
		name, _, hasValue := strings.Cut(strings.TrimLeft(f, "-"), "=")
		if !IsSensitiveKey(name) {
			continue
		}
		if hasValue {
			fields[i] = f[:strings.Index(f, "=")+1] + redactedValue
		} else {
			maskNext = true
		}
	}
	return strings.Join(fields, " ")
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
