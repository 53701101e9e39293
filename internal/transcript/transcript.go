// Package transcript persists the side-channel transcript document written
// after every successful run.
package transcript

import (
	"context"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/chunker"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("lecture-pipeline/transcript")

type File struct {
	LectureID  string          `json:"lectureId"`
	Transcript string          `json:"transcript"`
	Chunks     []chunker.Chunk `json:"chunks"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Store interface {
	Save(ctx context.Context, f File) error
}

func objectKey(lectureID string) string {
	return "transcripts/" + lectureID + ".json"
}
