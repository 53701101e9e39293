package summarize

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/MimeLyc/lecture-pipeline/internal/config"
	"github.com/MimeLyc/lecture-pipeline/internal/transcribe"
)

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

var summaryKeywords = []string{
	"concept", "principle", "theory", "method", "approach", "technique",
	"strategy", "framework", "analysis", "example", "case study",
	"application", "implementation", "objective", "goal", "conclusion",
}

const (
	minSummarySentence = 15
	topSentences       = 4
)

// ExtractiveProvider builds a templated summary from keyword-scored
// transcript sentences. It never fails.
type ExtractiveProvider struct{}

func (ExtractiveProvider) Name() string { return config.ProviderExtractive }

func (ExtractiveProvider) Attempt(_ context.Context, transcript string) (string, error) {
	return Extractive(transcript), nil
}

type scoredSentence struct {
	text  string
	score int
}

func Extractive(transcript string) string {
	clean := transcribe.StripTimestamps(transcript)

	sentences := make([]string, 0)
	for _, s := range sentenceSplit.Split(clean, -1) {
		if utf8.RuneCountInString(strings.TrimSpace(s)) > minSummarySentence {
			sentences = append(sentences, s)
		}
	}

	scored := make([]scoredSentence, 0, len(sentences))
	for _, s := range sentences {
		lower := strings.ToLower(s)
		score := 0
		for _, kw := range summaryKeywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		scored = append(scored, scoredSentence{text: strings.TrimSpace(s), score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	top := make([]string, 0, topSentences)
	for i := 0; i < len(scored) && i < topSentences; i++ {
		top = append(top, scored[i].text)
	}

	var b strings.Builder
	b.WriteString("**Lecture Summary:**\n\n")
	if len(top) > 0 {
		b.WriteString("This educational session covers key concepts including " + strings.ToLower(top[0]) + ". ")
	} else {
		b.WriteString("This educational session covers important educational material. ")
	}
	if len(top) > 1 {
		b.WriteString(top[1] + ". ")
	}

	b.WriteString("\n\n**Key Points:**\n")
	points := make([]string, 0, 2)
	for i := 1; i < len(top) && i < 3; i++ {
		points = append(points, fmt.Sprintf("%d. %s", i, top[i]))
	}
	b.WriteString(strings.Join(points, "\n"))

	minutes := int(math.Ceil(float64(len(sentences)) / 10))
	fmt.Fprintf(&b, "\n\n**Duration:** Approximately %d minutes of content.", minutes)
	return b.String()
}
