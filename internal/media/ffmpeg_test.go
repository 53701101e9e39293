package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// fake ffmpeg that records its argv and writes a stub wav to the last argument
const okFFmpeg = `for last; do :; done
echo "$@" > "$(dirname "$last")/args.txt"
printf 'RIFF' > "$last"`

func writeVideo(t *testing.T, dir string) string {
	t.Helper()
	video := filepath.Join(dir, "lecture1.mp4")
	require.NoError(t, os.WriteFile(video, []byte("not really a video"), 0o644))
	return video
}

func TestFFmpeg_ExtractAudio_FirstWorkingCandidate(t *testing.T) {
	bin := t.TempDir()
	work := t.TempDir()
	video := writeVideo(t, work)

	broken := writeScript(t, bin, "ffmpeg-broken", "echo 'codec not found' >&2\nexit 1")
	good := writeScript(t, bin, "ffmpeg-good", okFFmpeg)
	missing := filepath.Join(bin, "does-not-exist")

	ff := NewFFmpeg(missing, broken, good)
	out, err := ff.ExtractAudio(context.Background(), video)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(work, "lecture1.wav"), out)
	_, err = os.Stat(video)
	assert.NoError(t, err, "source video must be kept")

	args, err := os.ReadFile(filepath.Join(work, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t,
		strings.Join([]string{"-i", video, "-vn", "-acodec", "pcm_s16le", "-ar", "16000", "-ac", "1", "-y", out}, " "),
		strings.TrimSpace(string(args)))
}

func TestFFmpeg_ExtractAudio_AllCandidatesFail(t *testing.T) {
	bin := t.TempDir()
	video := writeVideo(t, t.TempDir())

	broken := writeScript(t, bin, "ffmpeg", "exit 3")
	noOutput := writeScript(t, bin, "ffmpeg-silent", "exit 0")

	ff := NewFFmpeg(broken, noOutput, filepath.Join(bin, "nope"))
	_, err := ff.ExtractAudio(context.Background(), video)

	var extractErr *ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.Len(t, extractErr.Attempts, 3)
	assert.Contains(t, err.Error(), "no output file produced")
}

func TestFFmpeg_ExtractAudio_MissingVideo(t *testing.T) {
	bin := t.TempDir()
	good := writeScript(t, bin, "ffmpeg", okFFmpeg)

	ff := NewFFmpeg(good)
	_, err := ff.ExtractAudio(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"))

	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Empty(t, extractErr.Attempts)
	assert.Contains(t, extractErr.Reason, "not found")
}

func TestFFmpeg_ExtractAudio_ContextCancelsSubprocess(t *testing.T) {
	bin := t.TempDir()
	video := writeVideo(t, t.TempDir())
	slow := writeScript(t, bin, "ffmpeg", "exec sleep 5")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewFFmpeg(slow).ExtractAudio(ctx, video)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestNewFFmpeg_DefaultCandidate(t *testing.T) {
	assert.Equal(t, []string{"ffmpeg"}, NewFFmpeg().Candidates())
}

func TestFFmpeg_ExtractAudio_WavSourceKeepsInput(t *testing.T) {
	bin := t.TempDir()
	work := t.TempDir()
	source := filepath.Join(work, "talk.wav")
	require.NoError(t, os.WriteFile(source, []byte("original recording"), 0o644))

	out, err := NewFFmpeg(writeScript(t, bin, "ffmpeg", okFFmpeg)).ExtractAudio(context.Background(), source)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(work, "talk.16k.wav"), out)
	data, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Equal(t, "original recording", string(data))
}
