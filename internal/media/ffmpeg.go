package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/lecture-pipeline/pkg/file"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lecture-pipeline/media")

// FFmpeg tries each candidate executable in order until one converts the video.
type FFmpeg struct {
	candidates []string
}

func NewFFmpeg(candidates ...string) *FFmpeg {
	if len(candidates) == 0 {
		candidates = []string{"ffmpeg"}
	}
	return &FFmpeg{candidates: candidates}
}

func (ff *FFmpeg) Candidates() []string {
	return append([]string(nil), ff.candidates...)
}

func (ff *FFmpeg) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	videoPath = filepath.Clean(videoPath)
	output := file.AudioPath(videoPath)

	ctx, span := tracer.Start(ctx, "media.extract_audio", trace.WithAttributes(
		attribute.String("video_path", videoPath),
	))
	defer span.End()

	info, err := os.Stat(videoPath)
	if err != nil || info.IsDir() {
		extractErr := &ExtractionError{VideoPath: videoPath, Reason: "source video not found"}
		span.RecordError(extractErr)
		return "", extractErr
	}

	failures := make([]CandidateFailure, 0, len(ff.candidates))
	for _, candidate := range ff.candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if err := ff.run(ctx, candidate, videoPath, output); err != nil {
			log.Debug("ffmpeg candidate %s failed, trying next: %v", candidate, err)
			failures = append(failures, CandidateFailure{Command: candidate, Err: err})
			continue
		}

		if ok, size := file.Stat(output); ok {
			log.Info("extracted audio %s (%s) with %s", filepath.Base(output), humanize.Bytes(uint64(size)), candidate)
			span.SetAttributes(attribute.String("ffmpeg", candidate), attribute.Int64("audio_bytes", size))
			return output, nil
		}
		failures = append(failures, CandidateFailure{Command: candidate, Err: errors.New("no output file produced")})
	}

	extractErr := &ExtractionError{VideoPath: videoPath, Reason: "ffmpeg not available in any candidate location", Attempts: failures}
	span.RecordError(extractErr)
	return "", extractErr
}

func (ff *FFmpeg) run(ctx context.Context, candidate, input, output string) error {
	cmdPath, err := exec.LookPath(candidate)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, cmdPath, extractAudioArgs(input, output)...)
	cmd.WaitDelay = 5 * time.Second
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s", err, lastLine(out))
	}
	return nil
}

func extractAudioArgs(input, output string) []string {
	return []string{
		"-i", input,
		"-vn", // drop video
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		output,
	}
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
