package parsers

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bc-legal-assistant/server/internal/agent/model"
)

const maxLabelLen = 64

// ParseCategory turns raw classifier output into a Classification. Output
// outside {rent, work, immigration, other} resolves to rent with Fallback set.
func ParseCategory(content string) model.Classification {
	label := normalizeLabel(content)
	if label == "" {
		return model.Classification{Category: model.DefaultCategory, Fallback: true, Reason: "empty classifier output"}
	}
	if c, ok := model.ParseCategory(label); ok {
		return model.Classification{Category: c}
	}
	return model.Classification{
		Category: model.DefaultCategory,
		Fallback: true,
		Reason:   "unrecognized label: " + safeSnippet(label),
	}
}

// normalizeLabel trims, lowercases and strips quotes or trailing punctuation
// models tend to add around a single-word answer ("'Work'." -> "work").
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || r == '`'
	})
}

// safeSnippet caps s at maxLabelLen runes.
func safeSnippet(s string) string {
	if utf8.RuneCountInString(s) <= maxLabelLen {
		return s
	}
	return string([]rune(s)[:maxLabelLen])
}
