package transcribe

import (
	"fmt"
	"net/http"

	"github.com/MimeLyc/lecture-pipeline/internal/config"
	"github.com/MimeLyc/lecture-pipeline/internal/media"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
)

type Deps struct {
	Extractor  media.AudioExtractor
	Whisper    config.WhisperConfig
	Hosted     audioTranscriber
	HTTPClient *http.Client
}

// NewChainFromNames builds the chain in the given order. Hosted stages are
// skipped when no hosted client is configured.
func NewChainFromNames(names []string, deps Deps) (*Chain, error) {
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		switch name {
		case config.ProviderWhisperServer:
			providers = append(providers, NewServerProvider(deps.Whisper.ServerURL, deps.Extractor, deps.HTTPClient))
		case config.ProviderWhisperDirect:
			providers = append(providers, NewDirectProvider(deps.Whisper.Python, deps.Whisper.DirectModel(), deps.Extractor))
		case config.ProviderOpenAIWhisper:
			if deps.Hosted == nil {
				log.Debug("transcription: %s listed but no hosted client configured, skipping", name)
				continue
			}
			providers = append(providers, NewHostedProvider(deps.Hosted, deps.Extractor))
		case config.ProviderSynthetic:
			providers = append(providers, NewSyntheticProvider())
		default:
			return nil, fmt.Errorf("unknown transcription provider %q", name)
		}
	}
	return NewChain(providers...), nil
}
