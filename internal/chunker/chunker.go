// Package chunker splits a transcript into fixed-size word windows for
// indexing.
package chunker

import (
	"strings"

	"github.com/MimeLyc/lecture-pipeline/internal/transcribe"
)

const (
	DefaultWords = 1000
	// windowSeconds is the nominal duration assigned to one chunk when the
	// transcript carries no timing markers.
	windowSeconds = 30
)

type Chunk struct {
	Index     int    `json:"chunkIndex"`
	Text      string `json:"text"`
	StartTime int    `json:"startTime"`
	EndTime   int    `json:"endTime"`
	// TimingApproximate is false only when both bounds come from "[mm:ss]" markers.
	TimingApproximate bool `json:"timingApproximate"`
}

type Chunker struct {
	words int
}

func New(words int) *Chunker {
	if words <= 0 {
		words = DefaultWords
	}
	return &Chunker{words: words}
}

func (c *Chunker) Size() int { return c.words }

// Chunk splits on single spaces. Joining the returned texts with " " yields
// the input exactly.
func (c *Chunker) Chunk(transcript string) []Chunk {
	if transcript == "" {
		return nil
	}
	words := strings.Split(transcript, " ")

	chunks := make([]Chunk, 0, (len(words)+c.words-1)/c.words)
	for start := 0; start < len(words); start += c.words {
		end := min(start+c.words, len(words))
		i := len(chunks)
		chunks = append(chunks, Chunk{
			Index:             i,
			Text:              strings.Join(words[start:end], " "),
			StartTime:         i * windowSeconds,
			EndTime:           (i + 1) * windowSeconds,
			TimingApproximate: true,
		})
	}
	applyMarkers(chunks)
	return chunks
}

// applyMarkers replaces index timing with measured timing for chunks that
// contain "[mm:ss]" markers.
func applyMarkers(chunks []Chunk) {
	marks := make([][]int, len(chunks))
	for i := range chunks {
		marks[i] = transcribe.Timestamps(chunks[i].Text)
	}
	for i := range chunks {
		if len(marks[i]) == 0 {
			continue
		}
		start := marks[i][0]
		end := marks[i][len(marks[i])-1] + windowSeconds
		if i+1 < len(chunks) && len(marks[i+1]) > 0 {
			end = marks[i+1][0]
		}
		if end < start {
			end = start
		}
		chunks[i].StartTime = start
		chunks[i].EndTime = end
		chunks[i].TimingApproximate = false
	}
}
