package rules

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxMessageLength = 2000
)

// NormalizeMessageText trims the text and reports whether it is sendable
// under the given rune limit.
func NormalizeMessageText(text string, maxRunes int) (string, bool) {
	if maxRunes <= 0 {
		maxRunes = MaxMessageLength
	}
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return "", false
	}
	if utf8.RuneCountInString(normalized) > maxRunes {
		return "", false
	}
	return normalized, true
}
