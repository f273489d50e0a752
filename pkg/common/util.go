package common

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// CutString shortens input to at most cut runes. Long text keeps its head and ends with "...".
func CutString(input string, cut int) string {
	if cut <= 0 {
		return ""
	}
	input = strings.ToValidUTF8(input, "")
	if utf8.RuneCountInString(input) <= cut {
		return input
	}
	runes := []rune(input)
	if cut <= len(ellipsis) {
		return string(runes[:cut])
	}
	return string(runes[:cut-len(ellipsis)]) + ellipsis // cut long text
}

// MaskSecret keeps a short prefix and suffix of a secret so that operators can
// recognize it without the full value ever being logged or alerted.
func MaskSecret(secret string) string {
	const (
		prefixLen = 6
		suffixLen = 4
	)
	if len(secret) <= prefixLen+suffixLen {
		return strings.Repeat("*", len(secret))
	}
	return secret[:prefixLen] + ellipsis + secret[len(secret)-suffixLen:]
}
