package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/config"
	"github.com/MimeLyc/lecture-pipeline/internal/media"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
	"golang.org/x/sync/singleflight"
)

var ErrServerUnavailable = errors.New("whisper server is not running or has no model loaded")

const healthTimeout = 5 * time.Second

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

type transcribeFileRequest struct {
	FilePath string `json:"file_path"`
}

type transcribeFileResponse struct {
	Success    bool   `json:"success"`
	Transcript string `json:"transcript"`
	Language   string `json:"language,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ServerProvider submits extracted audio to a local speech server by path.
type ServerProvider struct {
	baseURL    string
	httpClient *http.Client
	extractor  media.AudioExtractor
	probes     singleflight.Group
}

func NewServerProvider(baseURL string, extractor media.AudioExtractor, httpClient *http.Client) *ServerProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &ServerProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		extractor:  extractor,
	}
}

func (p *ServerProvider) Name() string { return config.ProviderWhisperServer }

// Healthy reports whether GET /health says the model is loaded. Concurrent
// callers share one probe.
func (p *ServerProvider) Healthy(ctx context.Context) bool {
	v, _, _ := p.probes.Do("health", func() (any, error) {
		probeCtx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.baseURL+"/health", nil)
		if err != nil {
			return false, nil
		}
		resp, err := p.httpClient.Do(req)
		if err != nil {
			return false, nil
		}
		defer resp.Body.Close()

		var health healthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			return false, nil
		}
		return health.Status == "healthy" && health.ModelLoaded, nil
	})
	ok, _ := v.(bool)
	return ok
}

func (p *ServerProvider) Attempt(ctx context.Context, videoPath string) (string, error) {
	if !p.Healthy(ctx) {
		return "", ErrServerUnavailable
	}

	audioPath, err := p.extractor.ExtractAudio(ctx, videoPath)
	if err != nil {
		return "", err
	}
	defer removeAudio(audioPath)

	absPath, err := filepath.Abs(audioPath)
	if err != nil {
		return "", err
	}
	log.Info("sending %s to whisper server", filepath.Base(absPath))

	payload, err := json.Marshal(transcribeFileRequest{FilePath: absPath})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transcribe-file", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper server request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read whisper server response: %w", err)
	}

	var result transcribeFileResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("whisper server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !result.Success {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("whisper server transcription failed: %s", msg)
	}

	log.Info("whisper server transcribed %d characters", len(result.Transcript))
	return strings.TrimSpace(result.Transcript), nil
}
