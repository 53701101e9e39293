package summarize

import "unicode/utf8"

// Transcript bounds per model stage, in characters.
const (
	LocalSummaryChars  = 2000
	HostedSummaryChars = 3000
	ChatChars          = 1500
)

// Prefix returns at most n characters of s without splitting a rune.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	i := 0
	for count := 0; i < len(s) && count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}
