package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("lecture-pipeline/llm")

// ErrUnavailable is returned when the server fails its liveness probe.
var ErrUnavailable = errors.New("local llm server unavailable")

const probeTimeout = 3 * time.Second

// Client talks to a local Ollama-compatible inference server.
// Safe for concurrent use; concurrent liveness probes share one request.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
	probes     singleflight.Group
}

// NewClient creates a new client with the given configuration
//
//	client, err := llm.NewClient(&llm.Config{APIURL: "http://localhost:11434", Model: "llama3.2", Timeout: 120})
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Client{
		config:  config,
		baseURL: strings.TrimRight(config.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

func (c *Client) Model() string {
	return c.config.Model
}

// Available probes GET /api/tags with a short timeout.
func (c *Client) Available(ctx context.Context) bool {
	v, _, _ := c.probes.Do("tags", func() (any, error) {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		var tags TagsResponse
		err := c.makeRequest(probeCtx, http.MethodGet, "/api/tags", nil, &tags)
		return err == nil, nil
	})
	ok, _ := v.(bool)
	return ok
}

// Generate runs a non-streaming completion and returns the response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "ollama.generate", trace.WithAttributes(
		attribute.String("model", c.config.Model),
		attribute.Int("prompt_chars", len(prompt)),
	))
	defer span.End()

	request := GenerateRequest{
		Model:  c.config.Model,
		Prompt: prompt,
		Stream: false,
	}

	var response GenerateResponse
	if err := c.makeRequest(ctx, http.MethodPost, "/api/generate", request, &response); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("generate failed: %w", err)
	}
	if response.Error != "" {
		return "", fmt.Errorf("generate failed: %s", response.Error)
	}
	if strings.TrimSpace(response.Response) == "" {
		return "", fmt.Errorf("generate failed: empty response")
	}
	return strings.TrimSpace(response.Response), nil
}

// ListModels returns the models the server has pulled.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var tags TagsResponse
	if err := c.makeRequest(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return nil, fmt.Errorf("failed to get models: %w", err)
	}
	return tags.Models, nil
}

func (c *Client) makeRequest(ctx context.Context, method, path string, payload any, out any) error {
	url := c.baseURL + path

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return fmt.Errorf("request timed out: %w", err)
		}
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(responseBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
