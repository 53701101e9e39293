package transcribe

import (
	"regexp"
	"strconv"
	"strings"
)

var timestampPattern = regexp.MustCompile(`\[(\d{2}):(\d{2})\]`)

// StripTimestamps removes "[mm:ss]" markers.
func StripTimestamps(text string) string {
	return strings.TrimSpace(timestampPattern.ReplaceAllString(text, ""))
}

// Timestamps returns every "[mm:ss]" marker in text as seconds, in order.
func Timestamps(text string) []int {
	matches := timestampPattern.FindAllStringSubmatch(text, -1)
	ret := make([]int, 0, len(matches))
	for _, m := range matches {
		mins, _ := strconv.Atoi(m[1])
		secs, _ := strconv.Atoi(m[2])
		ret = append(ret, mins*60+secs)
	}
	return ret
}
