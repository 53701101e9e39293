package transcribe

import (
	"context"

	"github.com/MimeLyc/lecture-pipeline/internal/config"
	"github.com/MimeLyc/lecture-pipeline/internal/media"
)

type audioTranscriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// HostedProvider uploads extracted audio to a hosted speech API.
type HostedProvider struct {
	client    audioTranscriber
	extractor media.AudioExtractor
}

func NewHostedProvider(client audioTranscriber, extractor media.AudioExtractor) *HostedProvider {
	return &HostedProvider{client: client, extractor: extractor}
}

func (p *HostedProvider) Name() string { return config.ProviderOpenAIWhisper }

func (p *HostedProvider) Attempt(ctx context.Context, videoPath string) (string, error) {
	audioPath, err := p.extractor.ExtractAudio(ctx, videoPath)
	if err != nil {
		return "", err
	}
	defer removeAudio(audioPath)

	return p.client.Transcribe(ctx, audioPath)
}
