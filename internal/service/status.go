package service

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/persistence"
	"github.com/MimeLyc/lecture-pipeline/internal/summarize"
	"github.com/MimeLyc/lecture-pipeline/pkg/file"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
	"github.com/dustin/go-humanize"
)

const previewChars = 200

type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type JobRef struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// StatusView is the polling snapshot of one lecture.
type StatusView struct {
	LectureID          string    `json:"lectureId"`
	Title              string    `json:"title"`
	Status             string    `json:"status"`
	HasTranscript      bool      `json:"hasTranscript"`
	TranscriptLength   int       `json:"transcriptLength"`
	TranscriptPreview  string    `json:"transcriptPreview,omitempty"`
	HasSummary         bool      `json:"hasSummary"`
	SummaryLength      int       `json:"summaryLength"`
	SummaryPreview     string    `json:"summaryPreview,omitempty"`
	VideoPath          string    `json:"videoPath,omitempty"`
	VideoFileExists    bool      `json:"videoFileExists"`
	VideoFileSize      float64   `json:"videoFileSize"`
	VideoFileSizeHuman string    `json:"videoFileSizeHuman,omitempty"`
	Language           string    `json:"language,omitempty"`
	Failure            *Failure  `json:"failure,omitempty"`
	Job                *JobRef   `json:"job,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Terminal reports whether polling can stop.
func (v StatusView) Terminal() bool {
	return v.Status == string(persistence.StatusCompleted) || v.Status == string(persistence.StatusFailed)
}

func (s *LectureService) Status(ctx context.Context, id string) (*StatusView, error) {
	if data, ok, err := s.cache.Get(ctx, id); err != nil {
		log.Warn("status cache read for %s failed: %v", id, err)
	} else if ok {
		var view StatusView
		if err := json.Unmarshal(data, &view); err == nil {
			return &view, nil
		}
	}

	lecture, err := s.GetLecture(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.buildStatus(lecture)

	if data, err := json.Marshal(view); err == nil {
		if err := s.cache.Set(ctx, id, data); err != nil {
			log.Warn("status cache write for %s failed: %v", id, err)
		}
	}
	return view, nil
}

func (s *LectureService) buildStatus(l *persistence.Lecture) *StatusView {
	view := &StatusView{
		LectureID:         l.ID,
		Title:             l.Title,
		Status:            string(l.Status),
		HasTranscript:     l.Transcript != "",
		TranscriptLength:  len([]rune(l.Transcript)),
		TranscriptPreview: summarize.Prefix(l.Transcript, previewChars),
		HasSummary:        l.Summary != "",
		SummaryLength:     len([]rune(l.Summary)),
		SummaryPreview:    summarize.Prefix(l.Summary, previewChars),
		VideoPath:         l.VideoPath,
		Language:          l.Language,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}

	if l.VideoPath != "" {
		exists, size := file.Stat(ResolveVideoPath(s.videosDir, l.VideoPath))
		view.VideoFileExists = exists
		if exists {
			view.VideoFileSize = math.Round(float64(size)/1024/1024*100) / 100
			view.VideoFileSizeHuman = humanize.Bytes(uint64(size))
		}
	}
	if l.Status == persistence.StatusFailed {
		view.Failure = &Failure{Kind: l.FailureKind, Message: l.FailureMessage}
	}
	if job, ok := s.queue.Latest(l.ID); ok {
		view.Job = &JobRef{ID: job.ID, Status: string(job.Status)}
	}
	return view
}
