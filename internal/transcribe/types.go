// Package transcribe turns a lecture video into transcript text with an
// ordered chain of speech-to-text providers.
package transcribe

import (
	"context"
	"os"

	"github.com/MimeLyc/lecture-pipeline/internal/chain"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
)

// Provider receives the video path and returns transcript text.
type Provider = chain.Provider[string, string]

type Result struct {
	Text     string   `json:"text"`
	Provider string   `json:"provider"`
	Skipped  []string `json:"skipped,omitempty"`
}

type Transcriber interface {
	Transcribe(ctx context.Context, videoPath string) (Result, error)
}

// removeAudio deletes a temporary extraction output; failures are only logged.
func removeAudio(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove temporary audio %s: %v", path, err)
	}
}
