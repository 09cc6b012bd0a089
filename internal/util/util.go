package util

import (
	"os"
	"path/filepath"
	"strings"
)

// WritablePath returns the cleaned WRITABLE_PATH environment variable when it is set.
// It accepts both uppercase and lowercase variants for compatibility with existing conventions.
func WritablePath() string {
	for _, key := range []string{"WRITABLE_PATH", "writable_path"} {
		if value, ok := os.LookupEnv(key); ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return filepath.Clean(trimmed)
			}
		}
	}
	return ""
}

// NormalizePhone strips separators from a phone number so that
// (company_id, phone) lookups are stable across input styles.
// A leading + is preserved.
func NormalizePhone(phone string) string {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(trimmed))
	for i, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskPhone obscures a phone number for logging, showing only the last digits.
func MaskPhone(phone string) string {
	normalized := NormalizePhone(phone)
	if len(normalized) > 4 {
		return strings.Repeat("*", len(normalized)-4) + normalized[len(normalized)-4:]
	}
	return strings.Repeat("*", len(normalized))
}
