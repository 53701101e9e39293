package service

import (
	"bytes"
	"context"

	"github.com/MimeLyc/lecture-pipeline/internal/subtitle"
)

// Captions renders the lecture's chunks as a caption file.
func (s *LectureService) Captions(ctx context.Context, id, format string) ([]byte, subtitle.Format, error) {
	f, ok := subtitle.ParseFormat(format)
	if !ok {
		return nil, "", NewError(ErrValidation, "format must be srt or vtt").WithContext("format", format)
	}
	lecture, err := s.GetLecture(ctx, id)
	if err != nil {
		return nil, "", err
	}
	chunks, err := s.store.ListChunks(ctx, lecture.ID)
	if err != nil {
		return nil, "", WrapError(err, ErrStorage, "list chunks")
	}
	if len(chunks) == 0 {
		return nil, "", NewError(ErrNotFound, "Transcript not available")
	}

	var buf bytes.Buffer
	if err := subtitle.Write(&buf, subtitle.FromChunks(chunks, lecture.Language), f); err != nil {
		return nil, "", WrapError(err, ErrUnknown, "render captions")
	}
	return buf.Bytes(), f, nil
}
