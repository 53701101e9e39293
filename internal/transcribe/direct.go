package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/config"
	"github.com/MimeLyc/lecture-pipeline/internal/media"
)

// Loads the model named by argv[1], transcribes argv[2], and prints one
// "[mm:ss] text" line per segment.
const directScript = `import sys
import whisper
model = whisper.load_model(sys.argv[1])
result = model.transcribe(sys.argv[2])
for segment in result["segments"]:
    start = int(segment["start"])
    print("[%02d:%02d] %s" % (start // 60, start % 60, segment["text"].strip()))
`

// DirectProvider runs whisper in a python subprocess.
type DirectProvider struct {
	python    string
	model     string
	extractor media.AudioExtractor
}

func NewDirectProvider(python, model string, extractor media.AudioExtractor) *DirectProvider {
	if python == "" {
		python = "python"
	}
	if model == "" {
		model = "tiny.en"
	}
	return &DirectProvider{python: python, model: model, extractor: extractor}
}

func (p *DirectProvider) Name() string { return config.ProviderWhisperDirect }

func (p *DirectProvider) Attempt(ctx context.Context, videoPath string) (string, error) {
	pythonPath, err := exec.LookPath(p.python)
	if err != nil {
		return "", fmt.Errorf("python not available: %w", err)
	}

	audioPath, err := p.extractor.ExtractAudio(ctx, videoPath)
	if err != nil {
		return "", err
	}
	defer removeAudio(audioPath)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, pythonPath, "-c", directScript, p.model, audioPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("python whisper failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
