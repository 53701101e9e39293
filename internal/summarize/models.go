package summarize

import (
	"context"
	"fmt"

	"github.com/MimeLyc/lecture-pipeline/internal/config"
	"github.com/MimeLyc/lecture-pipeline/internal/llm"
	"github.com/MimeLyc/lecture-pipeline/internal/transcribe"
)

// generator is the local LLM surface, satisfied by *llm.Client.
type generator interface {
	Available(ctx context.Context) bool
	Generate(ctx context.Context, prompt string) (string, error)
}

// completer is the hosted chat surface, satisfied by *llm.HostedClient.
type completer interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

const hostedSummarySystem = "You summarize university lecture transcripts for students."

func localSummaryPrompt(transcript string) string {
	return "Summarize this lecture transcript in 2-3 paragraphs, focusing on key concepts and main points:\n\n" +
		Prefix(transcript, LocalSummaryChars)
}

func hostedSummaryPrompt(transcript string) string {
	return fmt.Sprintf(`Create a concise summary of this lecture transcript. Focus on:
- Main topics covered
- Key concepts explained
- Important takeaways
- Learning objectives

Transcript:
%s

Provide a structured summary in 2-3 paragraphs.`, Prefix(transcribe.StripTimestamps(transcript), HostedSummaryChars))
}

func chatPrompt(q Question) string {
	return fmt.Sprintf(`Based on this lecture transcript, answer the student's question concisely:

Transcript: %s

Question: %s

Answer:`, Prefix(q.Transcript, ChatChars), q.Text)
}

type LocalSummaryProvider struct {
	client generator
}

func NewLocalSummaryProvider(client generator) *LocalSummaryProvider {
	return &LocalSummaryProvider{client: client}
}

func (p *LocalSummaryProvider) Name() string { return config.ProviderOllama }

func (p *LocalSummaryProvider) Attempt(ctx context.Context, transcript string) (string, error) {
	if !p.client.Available(ctx) {
		return "", llm.ErrUnavailable
	}
	return p.client.Generate(ctx, localSummaryPrompt(transcript))
}

type HostedSummaryProvider struct {
	client completer
}

func NewHostedSummaryProvider(client completer) *HostedSummaryProvider {
	return &HostedSummaryProvider{client: client}
}

func (p *HostedSummaryProvider) Name() string { return config.ProviderOpenAI }

func (p *HostedSummaryProvider) Attempt(ctx context.Context, transcript string) (string, error) {
	return p.client.Complete(ctx, hostedSummarySystem, hostedSummaryPrompt(transcript))
}

type LocalChatProvider struct {
	client generator
}

func NewLocalChatProvider(client generator) *LocalChatProvider {
	return &LocalChatProvider{client: client}
}

func (p *LocalChatProvider) Name() string { return config.ProviderOllama }

func (p *LocalChatProvider) Attempt(ctx context.Context, q Question) (string, error) {
	if !p.client.Available(ctx) {
		return "", llm.ErrUnavailable
	}
	return p.client.Generate(ctx, chatPrompt(q))
}

type HostedChatProvider struct {
	client completer
}

func NewHostedChatProvider(client completer) *HostedChatProvider {
	return &HostedChatProvider{client: client}
}

func (p *HostedChatProvider) Name() string { return config.ProviderOpenAI }

func (p *HostedChatProvider) Attempt(ctx context.Context, q Question) (string, error) {
	return p.client.Complete(ctx, "You answer student questions using only the lecture transcript.", chatPrompt(q))
}
