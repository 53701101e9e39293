package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FileStore writes <dir>/<lectureId>.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Path(lectureID string) string {
	return filepath.Join(s.dir, filepath.Base(lectureID)+".json")
}

// Save overwrites the document atomically via a temp file and rename.
func (s *FileStore) Save(ctx context.Context, f File) error {
	_, span := tracer.Start(ctx, "transcript.file.save", trace.WithAttributes(
		attribute.String("lecture_id", f.LectureID),
	))
	defer span.End()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		span.RecordError(err)
		return fmt.Errorf("create transcripts dir: %w", err)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	path := s.Path(f.LectureID)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("create temp transcript: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		span.RecordError(err)
		return fmt.Errorf("rename transcript: %w", err)
	}
	return nil
}

func (s *FileStore) Load(lectureID string) (File, error) {
	var f File
	data, err := os.ReadFile(s.Path(lectureID))
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("decode transcript %s: %w", lectureID, err)
	}
	return f, nil
}
