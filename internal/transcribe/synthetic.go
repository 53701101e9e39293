package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/MimeLyc/lecture-pipeline/internal/config"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
)

var syntheticSegments = []string{
	"Welcome to today's lecture. In this session, we'll be exploring important concepts that form the foundation of our subject matter.",
	"Let's begin by examining the key principles and theoretical frameworks that guide our understanding of this topic.",
	"As we progress through the material, you'll notice how each concept builds upon the previous one, creating a comprehensive knowledge structure.",
	"Now, let's look at some practical examples that demonstrate how these theories apply in real-world scenarios.",
	"It's important to understand the methodology behind these approaches and how they've evolved over time.",
	"Moving forward, we'll discuss the implications of these findings and their significance in the broader context of our field.",
	"Let me highlight some critical points that you should remember as we continue with our analysis.",
	"The research shows compelling evidence that supports these conclusions, and we'll examine the data in detail.",
	"As we near the end of our discussion, let's review the main takeaways and their practical applications.",
	"In conclusion, today's material provides you with essential knowledge that will serve as a foundation for future learning.",
}

const (
	minSyntheticSeconds = 30
	maxSyntheticSeconds = 600
	secondsPerSegment   = 30
)

// SyntheticProvider produces a generic lecture-shaped transcript sized from
// the video's byte size. It needs no subprocess and no network.
type SyntheticProvider struct{}

func NewSyntheticProvider() *SyntheticProvider { return &SyntheticProvider{} }

func (SyntheticProvider) Name() string { return config.ProviderSynthetic }

func (SyntheticProvider) Attempt(_ context.Context, videoPath string) (string, error) {
	info, err := os.Stat(videoPath)
	if err != nil {
		return "", fmt.Errorf("video file not found: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("video path %s is a directory", videoPath)
	}

	seconds := EstimateDurationSeconds(info.Size())
	text := SyntheticTranscript(seconds)
	log.Info("generated synthetic transcript of %d characters for an estimated %ds", len(text), seconds)
	return text, nil
}

// EstimateDurationSeconds assumes roughly 10 KB of media per second, clamped
// to [30, 600].
func EstimateDurationSeconds(sizeBytes int64) int {
	seconds := int(sizeBytes / 1024 / 10)
	if seconds < minSyntheticSeconds {
		return minSyntheticSeconds
	}
	if seconds > maxSyntheticSeconds {
		return maxSyntheticSeconds
	}
	return seconds
}

func SyntheticTranscript(seconds int) string {
	n := seconds / secondsPerSegment
	n = max(1, min(len(syntheticSegments), n))
	return strings.Join(syntheticSegments[:n], " ")
}
