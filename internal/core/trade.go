package core

import (
	"strings"
	"time"
	"unicode"
)

// UnknownSymbol is used when a record carries no symbol at all.
const UnknownSymbol = "UNKNOWN"

// CleanSymbol upper-cases a symbol and strips every non-alphanumeric
// character. Empty input yields UnknownSymbol. Input made only of stripped
// characters cleans to "", which is not a fixed point: cleaning "" again
// yields UnknownSymbol.
func CleanSymbol(symbol string) string {
	if symbol == "" {
		return UnknownSymbol
	}
	var b strings.Builder
	b.Grow(len(symbol))
	for _, r := range strings.ToUpper(symbol) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SideFromAction derives the trade side from free-form action text.
// Anything mentioning "short" or "sell" is short, everything else long.
func SideFromAction(action string) Side {
	a := strings.ToLower(action)
	if strings.Contains(a, "short") || strings.Contains(a, "sell") {
		return SideShort
	}
	return SideLong
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseTimestamp parses the timestamp formats seen in upstream records.
// Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimFunc(s, unicode.IsSpace)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
