package persistence

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusScheduled Status = "SCHEDULED"
	StatusLive      Status = "LIVE"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Lecture is one row of the lectures table. Empty strings stand for NULL in
// the nullable columns.
type Lecture struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	VideoPath      string    `json:"videoPath"`
	Transcript     string    `json:"transcript,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	Status         Status    `json:"status"`
	Language       string    `json:"language,omitempty"`
	FailureKind    string    `json:"failureKind,omitempty"`
	FailureMessage string    `json:"failureMessage,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ProcessingUpdate is the part of a lecture the pipeline writes.
type ProcessingUpdate struct {
	Status         Status
	Transcript     string
	Summary        string
	Language       string
	FailureKind    string
	FailureMessage string
}

// Processing returns the pipeline-owned fields of l.
func (l *Lecture) Processing() ProcessingUpdate {
	return ProcessingUpdate{
		Status:         l.Status,
		Transcript:     l.Transcript,
		Summary:        l.Summary,
		Language:       l.Language,
		FailureKind:    l.FailureKind,
		FailureMessage: l.FailureMessage,
	}
}

type Chunk struct {
	ID                string `json:"id"`
	LectureID         string `json:"lectureId"`
	Index             int    `json:"chunkIndex"`
	Text              string `json:"text"`
	StartTime         int    `json:"startTime"`
	EndTime           int    `json:"endTime"`
	TimingApproximate bool   `json:"timingApproximate"`
}
