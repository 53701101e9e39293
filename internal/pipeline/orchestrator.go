// Package pipeline runs one lecture through extraction, transcription,
// summarization, chunking, and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/cache"
	"github.com/MimeLyc/lecture-pipeline/internal/chunker"
	"github.com/MimeLyc/lecture-pipeline/internal/jobs"
	"github.com/MimeLyc/lecture-pipeline/internal/persistence"
	"github.com/MimeLyc/lecture-pipeline/internal/service"
	"github.com/MimeLyc/lecture-pipeline/internal/summarize"
	"github.com/MimeLyc/lecture-pipeline/internal/transcribe"
	"github.com/MimeLyc/lecture-pipeline/internal/transcript"
	"github.com/MimeLyc/lecture-pipeline/pkg/file"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
)

var tracer = otel.Tracer("lecture-pipeline/pipeline")

const (
	degradedSummaryChars = 500
	// failure writes must land even after the run context expired
	finalWriteTimeout = 10 * time.Second
)

type LectureStore interface {
	GetLecture(ctx context.Context, id string) (*persistence.Lecture, error)
	UpdateProcessing(ctx context.Context, id string, u persistence.ProcessingUpdate) error
	ReplaceChunks(ctx context.Context, lectureID string, chunks []chunker.Chunk) error
}

type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

type Deps struct {
	Store       LectureStore
	Transcriber transcribe.Transcriber
	Summarizer  Summarizer
	Chunker     *chunker.Chunker
	Transcripts transcript.Store
	Cache       cache.StatusCache
	VideosDir   string
}

type Orchestrator struct {
	store       LectureStore
	transcriber transcribe.Transcriber
	summarizer  Summarizer
	chunker     *chunker.Chunker
	transcripts transcript.Store
	cache       cache.StatusCache
	videosDir   string
	now         func() time.Time
}

func New(deps Deps) *Orchestrator {
	c := deps.Chunker
	if c == nil {
		c = chunker.New(chunker.DefaultWords)
	}
	statusCache := deps.Cache
	if statusCache == nil {
		statusCache = cache.Noop{}
	}
	return &Orchestrator{
		store:       deps.Store,
		transcriber: deps.Transcriber,
		summarizer:  deps.Summarizer,
		chunker:     c,
		transcripts: deps.Transcripts,
		cache:       statusCache,
		videosDir:   deps.VideosDir,
		now:         time.Now,
	}
}

// Execute adapts Run to the job queue.
func (o *Orchestrator) Execute(ctx context.Context, job *jobs.Job) error {
	return o.Run(ctx, job.LectureID)
}

// VideoPath resolves a stored video reference under the videos directory.
func (o *Orchestrator) VideoPath(ref string) string {
	return service.ResolveVideoPath(o.videosDir, ref)
}

// Run processes one lecture to COMPLETED or FAILED. A non-nil error means the
// lecture ended FAILED (or could not be loaded).
func (o *Orchestrator) Run(ctx context.Context, lectureID string) (err error) {
	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("lecture_id", lectureID),
	))
	defer span.End()

	lecture, err := o.store.GetLecture(ctx, lectureID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return service.NewErrorWithCause(service.ErrNotFound, "lecture not found", err).WithContext("lecture", lectureID)
		}
		return service.WrapError(err, service.ErrStorage, "load lecture")
	}

	defer func() {
		if r := recover(); r != nil {
			err = service.NewError(service.ErrUnknown, fmt.Sprintf("pipeline panicked: %v", r))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.fail(ctx, lecture, err)
		}
	}()

	return o.run(ctx, lecture)
}

func (o *Orchestrator) run(ctx context.Context, lecture *persistence.Lecture) error {
	start := o.now()

	lecture.Status = persistence.StatusScheduled
	if err := o.store.UpdateProcessing(ctx, lecture.ID, lecture.Processing()); err != nil {
		return o.stepError(ctx, err, service.ErrStorage, "mark scheduled")
	}
	o.invalidate(ctx, lecture.ID)

	videoPath := o.VideoPath(lecture.VideoPath)
	if exists, _ := file.Stat(videoPath); !exists {
		return service.NewError(service.ErrVideoMissing, "video file not found").
			WithContext("video", lecture.VideoPath)
	}

	result, err := o.transcriber.Transcribe(ctx, videoPath)
	if err != nil {
		return o.stepError(ctx, err, service.ErrTranscription, "transcription failed")
	}
	log.Info("lecture %s transcribed by %s (%d chars, skipped %v)", lecture.ID, result.Provider, len(result.Text), result.Skipped)

	lang := transcribe.DetectLanguage(result.Text)

	summary, err := o.summarizer.Summarize(ctx, result.Text)
	if err != nil {
		log.Warn("lecture %s: summarization failed, storing transcript prefix: %v", lecture.ID, err)
		summary = DegradedSummary(result.Text)
	}

	chunks := o.chunker.Chunk(result.Text)

	if o.transcripts != nil {
		doc := transcript.File{
			LectureID:  lecture.ID,
			Transcript: result.Text,
			Chunks:     chunks,
			CreatedAt:  o.now().UTC(),
		}
		if err := o.transcripts.Save(ctx, doc); err != nil {
			return o.stepError(ctx, err, service.ErrStorage, "write transcript file")
		}
	}

	if err := o.store.ReplaceChunks(ctx, lecture.ID, chunks); err != nil {
		return o.stepError(ctx, err, service.ErrStorage, "replace chunks")
	}

	lecture.Transcript = result.Text
	lecture.Summary = summary
	lecture.Language = ""
	if lang != language.Und {
		lecture.Language = lang.String()
	}
	lecture.Status = persistence.StatusCompleted
	lecture.FailureKind = ""
	lecture.FailureMessage = ""
	if err := o.store.UpdateProcessing(ctx, lecture.ID, lecture.Processing()); err != nil {
		return o.stepError(ctx, err, service.ErrStorage, "mark completed")
	}
	o.invalidate(ctx, lecture.ID)

	log.Info("lecture %s completed in %s: %d chunks", lecture.ID, o.now().Sub(start).Round(time.Millisecond), len(chunks))
	return nil
}

// stepError prefers the context's own failure (timeout, shutdown) over the
// step's kind.
func (o *Orchestrator) stepError(ctx context.Context, err error, kind service.ErrorKind, message string) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = service.ErrTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		kind = service.ErrCanceled
	}
	return service.WrapError(err, kind, message)
}

func (o *Orchestrator) fail(ctx context.Context, lecture *persistence.Lecture, cause error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	kind := service.KindOf(cause)
	message := cause.Error()
	var svcErr *service.Error
	if errors.As(cause, &svcErr) {
		message = svcErr.Message
		if svcErr.Cause != nil {
			message += ": " + svcErr.Cause.Error()
		}
	}

	// a canceled run is resumed from the queue on the next start
	if kind == service.ErrCanceled {
		lecture.Status = persistence.StatusScheduled
		lecture.FailureKind = ""
		lecture.FailureMessage = ""
		if err := o.store.UpdateProcessing(writeCtx, lecture.ID, lecture.Processing()); err != nil {
			log.Error("lecture %s: could not record interruption: %v", lecture.ID, err)
		}
		o.invalidate(writeCtx, lecture.ID)
		log.Info("lecture %s interrupted, left %s", lecture.ID, lecture.Status)
		return
	}

	lecture.Status = persistence.StatusFailed
	lecture.FailureKind = kind.String()
	lecture.FailureMessage = message
	if err := o.store.UpdateProcessing(writeCtx, lecture.ID, lecture.Processing()); err != nil {
		log.Error("lecture %s: could not record failure %q: %v", lecture.ID, message, err)
	}
	o.invalidate(writeCtx, lecture.ID)
	log.Warn("lecture %s failed [%s]: %s (advice: %s)", lecture.ID, kind, message, service.Advice(kind))
}

func (o *Orchestrator) invalidate(ctx context.Context, lectureID string) {
	if err := o.cache.Invalidate(ctx, lectureID); err != nil {
		log.Warn("status cache invalidate for %s failed: %v", lectureID, err)
	}
}

// DegradedSummary is the first 500 characters of the transcript, with "..."
// when it was cut.
func DegradedSummary(text string) string {
	prefix := summarize.Prefix(text, degradedSummaryChars)
	if len(prefix) < len(text) {
		return prefix + "..."
	}
	return prefix
}
