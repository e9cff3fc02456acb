package util

import (
	"regexp"
	"strings"
)

// Pandas-style positional suffixes: a duplicated column "Voltage" is read back
// as "Voltage.1", "Voltage.2" and so on. Both must resolve to the same header.
var rePositionalSuffix = regexp.MustCompile(`\.\d+$`)

// StripPositionalSuffix removes a trailing numeric positional suffix from a
// column header. "Voltage.1" and "Voltage" describe the same logical column.
func StripPositionalSuffix(header string) string {
	return rePositionalSuffix.ReplaceAllString(strings.TrimSpace(header), "")
}

// NormalizeHeader produces the canonical cache key for a column header:
// positional suffix stripped, lowercased, inner whitespace collapsed to a
// single space.
func NormalizeHeader(header string) string {
	h := StripPositionalSuffix(header)
	h = strings.ToLower(h)
	return strings.Join(strings.Fields(h), " ")
}

// SanitizeEmbeddingText prepares a string for the embedding endpoint:
// newlines become spaces and quote characters are dropped, since they carry
// no ranking signal and some providers choke on them.
func SanitizeEmbeddingText(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, `"`, "")
	text = strings.ReplaceAll(text, "'", "")
	return strings.TrimSpace(text)
}

// SanitizePostgresText strips invalid UTF-8 and NUL bytes, which Postgres
// text columns reject.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
