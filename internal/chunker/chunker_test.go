package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	ws := make([]string, n)
	for i := range ws {
		ws[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(ws, " ")
}

func texts(chunks []Chunk) []string {
	ret := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ret = append(ret, c.Text)
	}
	return ret
}

func TestChunk_CoverageAndReconstruction(t *testing.T) {
	tests := []struct {
		name  string
		words int
		size  int
		want  int
	}{
		{"single word", 1, 1000, 1},
		{"exact window", 1000, 1000, 1},
		{"one over", 1001, 1000, 2},
		{"small windows", 25, 7, 4},
		{"many", 5432, 1000, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transcript := words(tt.words)
			chunks := New(tt.size).Chunk(transcript)

			require.Len(t, chunks, tt.want)
			assert.Equal(t, transcript, strings.Join(texts(chunks), " "))
			for i, c := range chunks {
				assert.Equal(t, i, c.Index)
				assert.Equal(t, i*30, c.StartTime)
				assert.Equal(t, (i+1)*30, c.EndTime)
				assert.True(t, c.TimingApproximate)
				if i < len(chunks)-1 {
					assert.Len(t, strings.Split(c.Text, " "), tt.size)
				}
			}
		})
	}
}

func TestChunk_PreservesRepeatedSpaces(t *testing.T) {
	transcript := "a  b   c d"
	chunks := New(2).Chunk(transcript)
	assert.Equal(t, transcript, strings.Join(texts(chunks), " "))
}

func TestChunk_Empty(t *testing.T) {
	assert.Empty(t, New(1000).Chunk(""))
}

func TestChunk_DefaultSize(t *testing.T) {
	assert.Equal(t, DefaultWords, New(0).Size())
}

func TestChunk_MeasuredTiming(t *testing.T) {
	transcript := "[00:00] one two [00:20] three [01:10] four five [02:00] six"
	chunks := New(4).Chunk(transcript)
	require.Len(t, chunks, 3)

	// [00:00] one two [00:20] | three [01:10] four five | [02:00] six
	assert.Equal(t, 0, chunks[0].StartTime)
	assert.Equal(t, 70, chunks[0].EndTime)
	assert.False(t, chunks[0].TimingApproximate)

	assert.Equal(t, 70, chunks[1].StartTime)
	assert.Equal(t, 120, chunks[1].EndTime)

	assert.Equal(t, 120, chunks[2].StartTime)
	assert.Equal(t, 150, chunks[2].EndTime)
	assert.False(t, chunks[2].TimingApproximate)
}
