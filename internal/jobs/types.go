package jobs

import "time"

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Active reports whether the job still holds its lecture's dedupe slot.
func (s Status) Active() bool {
	return s == StatusQueued || s == StatusRunning
}

type Kind string

const (
	KindProcess Kind = "process"
	KindRetry   Kind = "retry"
)

type EnqueueRequest struct {
	Kind      Kind
	LectureID string
}

type Job struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	LectureID string    `json:"lectureId"`
	DedupeKey string    `json:"dedupeKey"`
	Status    Status    `json:"status"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"errorKind,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
