package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	hostedMaxTokens   = 300
	hostedTemperature = 0.3
)

// HostedClient wraps an OpenAI-compatible API for optional hosted providers.
type HostedClient struct {
	client    *openai.Client
	chatModel string
}

func NewHostedClient(apiKey, baseURL, chatModel string) (*HostedClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("hosted api key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if chatModel == "" {
		chatModel = openai.GPT3Dot5Turbo
	}
	return &HostedClient{
		client:    openai.NewClientWithConfig(cfg),
		chatModel: chatModel,
	}, nil
}

// Complete sends one system + user exchange and returns the first choice.
func (h *HostedClient) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := h.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       h.chatModel,
		Messages:    messages,
		MaxTokens:   hostedMaxTokens,
		Temperature: hostedTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Transcribe uploads an audio file to the hosted speech endpoint.
func (h *HostedClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := h.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("hosted transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
