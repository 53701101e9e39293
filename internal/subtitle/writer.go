package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/persistence"
	"github.com/MimeLyc/lecture-pipeline/internal/transcribe"
)

// FromChunks turns stored chunks, in index order, into one cue each.
// Timing markers are removed from the cue text.
func FromChunks(chunks []persistence.Chunk, lang string) *File {
	f := &File{Language: lang, Lines: make([]Line, 0, len(chunks))}
	for i, c := range chunks {
		text := strings.TrimSpace(transcribe.StripTimestamps(c.Text))
		if text == "" {
			continue
		}
		f.Lines = append(f.Lines, Line{
			Index:     i + 1,
			StartTime: time.Duration(c.StartTime) * time.Second,
			EndTime:   time.Duration(c.EndTime) * time.Second,
			Text:      text,
		})
	}
	return f
}

func Write(w io.Writer, subtitle *File, format Format) error {
	if subtitle == nil {
		return fmt.Errorf("subtitle data is empty")
	}

	writer := bufio.NewWriter(w)

	stamp := formatSRTDuration
	if format == FormatVTT {
		stamp = formatVTTDuration
		fmt.Fprint(writer, "WEBVTT\n")
		if subtitle.Language != "" {
			fmt.Fprintf(writer, "Language: %s\n", subtitle.Language)
		}
		fmt.Fprint(writer, "\n")
	}

	for _, line := range subtitle.Lines {
		fmt.Fprintf(writer, "%d\n", line.Index)
		fmt.Fprintf(writer, "%s --> %s\n", stamp(line.StartTime), stamp(line.EndTime))
		fmt.Fprintf(writer, "%s\n\n", line.Text)
	}

	return writer.Flush()
}

// formatSRTDuration formats time.Duration to SRT time format
func formatSRTDuration(d time.Duration) string {
	return formatDuration(d, ',')
}

func formatVTTDuration(d time.Duration) string {
	return formatDuration(d, '.')
}

func formatDuration(d time.Duration, sep rune) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, seconds, sep, milliseconds)
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
