// Package subtitle renders lecture chunks as caption files.
package subtitle

import "time"

type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// ParseFormat accepts "srt" or "vtt", case-insensitively.
func ParseFormat(s string) (Format, bool) {
	switch Format(lower(s)) {
	case FormatSRT:
		return FormatSRT, true
	case FormatVTT:
		return FormatVTT, true
	}
	return "", false
}

func (f Format) ContentType() string {
	if f == FormatVTT {
		return "text/vtt; charset=utf-8"
	}
	return "application/x-subrip; charset=utf-8"
}

// Line is one caption cue
type Line struct {
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

type File struct {
	Lines    []Line
	Language string
}
