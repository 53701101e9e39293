// Package service implements the lecture operations behind the HTTP API:
// upload, processing, retry, chat, search, and status.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/cache"
	"github.com/MimeLyc/lecture-pipeline/internal/jobs"
	"github.com/MimeLyc/lecture-pipeline/internal/persistence"
	"github.com/MimeLyc/lecture-pipeline/pkg/file"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
	"github.com/dustin/go-humanize"
)

type LectureStore interface {
	CreateLecture(ctx context.Context, l *persistence.Lecture) error
	GetLecture(ctx context.Context, id string) (*persistence.Lecture, error)
	UpdateLecture(ctx context.Context, l *persistence.Lecture) error
	ListLectures(ctx context.Context) ([]*persistence.Lecture, error)
	ListChunks(ctx context.Context, lectureID string) ([]persistence.Chunk, error)
}

type JobQueue interface {
	Enqueue(req jobs.EnqueueRequest) (*jobs.Job, bool)
	Active(lectureID string) (*jobs.Job, bool)
	Latest(lectureID string) (*jobs.Job, bool)
}

type Answerer interface {
	Answer(ctx context.Context, transcript, question string) (string, error)
}

type Deps struct {
	Store     LectureStore
	Queue     JobQueue
	Answerer  Answerer
	Cache     cache.StatusCache
	VideosDir string
}

type LectureService struct {
	store     LectureStore
	queue     JobQueue
	answerer  Answerer
	cache     cache.StatusCache
	videosDir string
	now       func() time.Time
}

func NewLectureService(deps Deps) *LectureService {
	statusCache := deps.Cache
	if statusCache == nil {
		statusCache = cache.Noop{}
	}
	return &LectureService{
		store:     deps.Store,
		queue:     deps.Queue,
		answerer:  deps.Answerer,
		cache:     statusCache,
		videosDir: deps.VideosDir,
		now:       time.Now,
	}
}

// ResolveVideoPath maps a stored reference such as "videos/x.mp4" to its
// file under videosDir. Only the base name of ref is used.
func ResolveVideoPath(videosDir, ref string) string {
	if strings.TrimSpace(ref) == "" {
		return ""
	}
	return filepath.Join(videosDir, filepath.Base(ref))
}

// UploadResult is returned by Upload and UploadRecording.
type UploadResult struct {
	Lecture *persistence.Lecture `json:"lecture"`
	Job     *jobs.Job            `json:"job"`
	Size    int64                `json:"size"`
}

func (s *LectureService) CreateLecture(ctx context.Context, title, description string) (*persistence.Lecture, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, NewError(ErrValidation, "title is required")
	}
	lecture := &persistence.Lecture{
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      persistence.StatusDraft,
	}
	if err := s.store.CreateLecture(ctx, lecture); err != nil {
		return nil, WrapError(err, ErrStorage, "create lecture")
	}
	return lecture, nil
}

func (s *LectureService) GetLecture(ctx context.Context, id string) (*persistence.Lecture, error) {
	lecture, err := s.store.GetLecture(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, NewError(ErrNotFound, "Lecture not found").WithContext("lecture", id)
		}
		return nil, WrapError(err, ErrStorage, "load lecture")
	}
	return lecture, nil
}

func (s *LectureService) ListLectures(ctx context.Context) ([]*persistence.Lecture, error) {
	lectures, err := s.store.ListLectures(ctx)
	if err != nil {
		return nil, WrapError(err, ErrStorage, "list lectures")
	}
	return lectures, nil
}

// Upload stores a video as <id>-<unixMillis>-<name> and schedules processing.
// Optional title and description replace the lecture's when non-empty.
func (s *LectureService) Upload(ctx context.Context, id, filename string, body io.Reader, title, description string) (*UploadResult, error) {
	lecture, err := s.GetLecture(ctx, id)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s-%d-%s", lecture.ID, s.now().UnixMilli(), file.SafeName(filename))
	if t := strings.TrimSpace(title); t != "" {
		lecture.Title = t
	}
	if d := strings.TrimSpace(description); d != "" {
		lecture.Description = d
	}
	return s.attachVideo(ctx, lecture, name, body)
}

// UploadRecording stores an in-browser recording as
// <id>_recording_<unixMillis>.<ext> and schedules processing.
func (s *LectureService) UploadRecording(ctx context.Context, id, filename string, body io.Reader) (*UploadResult, error) {
	lecture, err := s.GetLecture(ctx, id)
	if err != nil {
		return nil, err
	}
	ext := file.Ext(filename)
	if ext == "" {
		ext = "webm"
	}
	name := fmt.Sprintf("%s_recording_%d.%s", lecture.ID, s.now().UnixMilli(), ext)
	return s.attachVideo(ctx, lecture, name, body)
}

// attachVideo refuses while a job is active: the running job would keep
// processing the old file and the new one would never be picked up.
func (s *LectureService) attachVideo(ctx context.Context, lecture *persistence.Lecture, name string, body io.Reader) (*UploadResult, error) {
	if active, ok := s.queue.Active(lecture.ID); ok {
		return nil, NewError(ErrConflict, "lecture is already being processed").WithContext("job", active.ID)
	}
	size, err := s.saveVideo(name, body)
	if err != nil {
		return nil, WrapError(err, ErrStorage, "save video").WithContext("file", name)
	}
	log.Info("stored video %s for lecture %s (%s)", name, lecture.ID, humanize.Bytes(uint64(size)))

	lecture.VideoPath = "videos/" + name
	lecture.Status = persistence.StatusScheduled
	if err := s.store.UpdateLecture(ctx, lecture); err != nil {
		return nil, WrapError(err, ErrStorage, "record video reference")
	}

	job, _ := s.queue.Enqueue(jobs.EnqueueRequest{Kind: jobs.KindProcess, LectureID: lecture.ID})
	s.invalidate(ctx, lecture.ID)
	return &UploadResult{Lecture: lecture, Job: job, Size: size}, nil
}

func (s *LectureService) saveVideo(name string, body io.Reader) (int64, error) {
	if err := os.MkdirAll(s.videosDir, 0o755); err != nil {
		return 0, err
	}
	dst := filepath.Join(s.videosDir, name)
	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	if n == 0 {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("uploaded file is empty")
	}
	return n, nil
}

// Process schedules a run. Repeated calls while a job is active return that
// job with created=false.
func (s *LectureService) Process(ctx context.Context, id string) (*jobs.Job, bool, error) {
	lecture, err := s.GetLecture(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if lecture.VideoPath == "" {
		return nil, false, NewError(ErrNotFound, "No video found").WithContext("lecture", id)
	}
	job, created := s.queue.Enqueue(jobs.EnqueueRequest{Kind: jobs.KindProcess, LectureID: id})
	if created {
		s.invalidate(ctx, id)
	}
	return job, created, nil
}

// Retry re-runs the chain for a lecture that has a video and is not being
// processed.
func (s *LectureService) Retry(ctx context.Context, id string) (*jobs.Job, error) {
	lecture, err := s.GetLecture(ctx, id)
	if err != nil {
		return nil, err
	}
	if lecture.VideoPath == "" {
		return nil, NewError(ErrNotFound, "Lecture or video not found").WithContext("lecture", id)
	}
	if active, ok := s.queue.Active(id); ok {
		return nil, NewError(ErrConflict, "lecture is already being processed").WithContext("job", active.ID)
	}
	if !retryable(lecture) {
		return nil, NewError(ErrConflict, fmt.Sprintf("lecture in status %s cannot be retried", lecture.Status))
	}

	job, created := s.queue.Enqueue(jobs.EnqueueRequest{Kind: jobs.KindRetry, LectureID: id})
	if !created {
		return nil, NewError(ErrConflict, "lecture is already being processed").WithContext("job", job.ID)
	}
	s.invalidate(ctx, id)
	return job, nil
}

// retryable rejects only LIVE lectures; every other status with a video,
// including DRAFT carrying an old error transcript, may re-enter the chain.
func retryable(l *persistence.Lecture) bool {
	return l.Status != persistence.StatusLive
}

func (s *LectureService) Chat(ctx context.Context, id, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", NewError(ErrValidation, "message is required")
	}
	lecture, err := s.GetLecture(ctx, id)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(lecture.Transcript) == "" {
		return "", NewError(ErrNotFound, "Transcript not available")
	}
	answer, err := s.answerer.Answer(ctx, lecture.Transcript, message)
	if err != nil {
		return "", WrapError(err, ErrUnknown, "chat failed")
	}
	return answer, nil
}

func (s *LectureService) Search(ctx context.Context, id, query string) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, NewError(ErrValidation, "query is required")
	}
	lecture, err := s.GetLecture(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(lecture.Transcript) == "" {
		return nil, NewError(ErrNotFound, "Transcript not available")
	}
	return SearchSentences(lecture.Transcript, query, maxSearchResults), nil
}

// JobFinished drops the cached view so the final job status shows up; it is
// meant as the queue's finish hook.
func (s *LectureService) JobFinished(job *jobs.Job) {
	s.invalidate(context.Background(), job.LectureID)
}

func (s *LectureService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		log.Warn("status cache invalidate for %s failed: %v", id, err)
	}
}
