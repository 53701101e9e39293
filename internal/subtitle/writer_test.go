package subtitle

import (
	"bytes"
	"testing"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromChunks(t *testing.T) {
	f := FromChunks([]persistence.Chunk{
		{Index: 0, Text: "[00:00] Welcome to the course", StartTime: 0, EndTime: 30},
		{Index: 1, Text: "  ", StartTime: 30, EndTime: 60},
		{Index: 2, Text: "Gradients flow backwards", StartTime: 60, EndTime: 90},
	}, "en")

	require.Len(t, f.Lines, 2)
	assert.Equal(t, "Welcome to the course", f.Lines[0].Text)
	assert.Equal(t, 3, f.Lines[1].Index)
	assert.Equal(t, 60*time.Second, f.Lines[1].StartTime)
}

func TestWrite(t *testing.T) {
	f := &File{Language: "en", Lines: []Line{
		{Index: 1, StartTime: 0, EndTime: 30 * time.Second, Text: "first"},
		{Index: 2, StartTime: time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond, EndTime: 2 * time.Hour, Text: "second"},
	}}

	var srt bytes.Buffer
	require.NoError(t, Write(&srt, f, FormatSRT))
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:30,000\nfirst\n\n"+
		"2\n01:02:03,004 --> 02:00:00,000\nsecond\n\n", srt.String())

	var vtt bytes.Buffer
	require.NoError(t, Write(&vtt, f, FormatVTT))
	assert.Equal(t, "WEBVTT\nLanguage: en\n\n"+
		"1\n00:00:00.000 --> 00:00:30.000\nfirst\n\n"+
		"2\n01:02:03.004 --> 02:00:00.000\nsecond\n\n", vtt.String())

	assert.Error(t, Write(&vtt, nil, FormatSRT))
}

func TestParseFormat(t *testing.T) {
	got, ok := ParseFormat(" VTT ")
	assert.True(t, ok)
	assert.Equal(t, FormatVTT, got)
	_, ok = ParseFormat("ass")
	assert.False(t, ok)
	assert.Contains(t, FormatSRT.ContentType(), "subrip")
}
