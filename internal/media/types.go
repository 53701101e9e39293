package media

import (
	"context"
	"fmt"
	"strings"
)

// AudioExtractor converts a video into a mono 16 kHz PCM wav next to it.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath string) (string, error)
}

type CandidateFailure struct {
	Command string
	Err     error
}

// ExtractionError is terminal for one extraction: the source is missing or
// no candidate executable produced the audio file.
type ExtractionError struct {
	VideoPath string
	Reason    string
	Attempts  []CandidateFailure
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "extract audio from %s: %s", e.VideoPath, e.Reason)
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %v", a.Command, a.Err)
	}
	return b.String()
}
