package summarize

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/MimeLyc/lecture-pipeline/internal/config"
)

const (
	overviewAnswer = "This lecture covers key educational concepts including theoretical frameworks, practical applications, and implementation strategies."
	examplesAnswer = "The lecture includes various examples and case studies to illustrate the concepts being discussed."
)

// KeywordProvider answers from transcript sentences that share a word with
// the question. It never fails.
type KeywordProvider struct{}

func (KeywordProvider) Name() string { return config.ProviderKeyword }

func (KeywordProvider) Attempt(_ context.Context, q Question) (string, error) {
	return KeywordAnswer(q.Transcript, q.Text), nil
}

func KeywordAnswer(transcript, question string) string {
	lowerQ := strings.ToLower(question)

	if strings.Contains(lowerQ, "summary") || strings.Contains(lowerQ, "main point") {
		return overviewAnswer
	}
	if strings.Contains(lowerQ, "example") || strings.Contains(lowerQ, "case study") {
		return examplesAnswer
	}

	words := make([]string, 0)
	for _, w := range strings.Split(lowerQ, " ") {
		if utf8.RuneCountInString(w) > 3 {
			words = append(words, w)
		}
	}

	for _, sentence := range strings.Split(transcript, ".") {
		if utf8.RuneCountInString(strings.TrimSpace(sentence)) <= 10 {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, w := range words {
			if strings.Contains(lower, w) {
				return strings.TrimSpace(sentence) + "."
			}
		}
	}

	return `Based on the lecture content, your question about "` + question + `" relates to the educational material covered in this session.`
}
