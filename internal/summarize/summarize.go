// Package summarize produces lecture summaries and answers questions about a
// transcript, falling back from model-backed stages to deterministic ones.
package summarize

import (
	"context"
	"fmt"

	"github.com/MimeLyc/lecture-pipeline/internal/chain"
	"github.com/MimeLyc/lecture-pipeline/internal/config"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
)

// Question is a chat request grounded in one transcript.
type Question struct {
	Transcript string
	Text       string
}

type Summarizer struct {
	inner *chain.Chain[string, string]
}

func NewSummarizer(providers ...chain.Provider[string, string]) *Summarizer {
	return &Summarizer{inner: chain.New[string, string]("summarization", chain.BlankString, providers...)}
}

func (s *Summarizer) Providers() []string { return s.inner.Providers() }

func (s *Summarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	res, err := s.inner.Run(ctx, transcript)
	if err != nil {
		return "", err
	}
	return res.Value, nil
}

type Answerer struct {
	inner *chain.Chain[Question, string]
}

func NewAnswerer(providers ...chain.Provider[Question, string]) *Answerer {
	return &Answerer{inner: chain.New[Question, string]("chat", chain.BlankString, providers...)}
}

func (a *Answerer) Providers() []string { return a.inner.Providers() }

func (a *Answerer) Answer(ctx context.Context, transcript, question string) (string, error) {
	res, err := a.inner.Run(ctx, Question{Transcript: transcript, Text: question})
	if err != nil {
		return "", err
	}
	return res.Value, nil
}

// Deps carries the optional model clients. A nil client drops its stages.
type Deps struct {
	Local  generator
	Hosted completer
}

func NewSummarizerFromNames(names []string, deps Deps) (*Summarizer, error) {
	providers := make([]chain.Provider[string, string], 0, len(names))
	for _, name := range names {
		switch name {
		case config.ProviderOllama:
			if deps.Local == nil {
				continue
			}
			providers = append(providers, NewLocalSummaryProvider(deps.Local))
		case config.ProviderOpenAI:
			if deps.Hosted == nil {
				log.Debug("summarization: %s listed but no hosted client configured, skipping", name)
				continue
			}
			providers = append(providers, NewHostedSummaryProvider(deps.Hosted))
		case config.ProviderExtractive:
			providers = append(providers, ExtractiveProvider{})
		default:
			return nil, fmt.Errorf("unknown summarization provider %q", name)
		}
	}
	return NewSummarizer(providers...), nil
}

func NewAnswererFromNames(names []string, deps Deps) (*Answerer, error) {
	providers := make([]chain.Provider[Question, string], 0, len(names))
	for _, name := range names {
		switch name {
		case config.ProviderOllama:
			if deps.Local == nil {
				continue
			}
			providers = append(providers, NewLocalChatProvider(deps.Local))
		case config.ProviderOpenAI:
			if deps.Hosted == nil {
				log.Debug("chat: %s listed but no hosted client configured, skipping", name)
				continue
			}
			providers = append(providers, NewHostedChatProvider(deps.Hosted))
		case config.ProviderKeyword:
			providers = append(providers, KeywordProvider{})
		default:
			return nil, fmt.Errorf("unknown chat provider %q", name)
		}
	}
	return NewAnswerer(providers...), nil
}
