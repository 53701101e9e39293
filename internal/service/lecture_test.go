package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/cache"
	"github.com/MimeLyc/lecture-pipeline/internal/chunker"
	"github.com/MimeLyc/lecture-pipeline/internal/config"
	"github.com/MimeLyc/lecture-pipeline/internal/jobs"
	"github.com/MimeLyc/lecture-pipeline/internal/persistence"
	"github.com/MimeLyc/lecture-pipeline/internal/subtitle"
	"github.com/MimeLyc/lecture-pipeline/internal/summarize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const neuralTranscript = "Today we study neural networks. Gradient descent trains them! " +
	"Is a Neural model always deep? Backpropagation computes gradients. " +
	"Neural nets generalize... Regularization helps."

type fixture struct {
	svc       *LectureService
	store     *persistence.SQLStore
	queue     *jobs.Queue
	cache     *cache.Memory
	videosDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	store, err := persistence.NewSQLiteStore(filepath.Join(root, "lectures.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	answerer, err := summarize.NewAnswererFromNames([]string{config.ProviderKeyword}, summarize.Deps{})
	require.NoError(t, err)

	// not started: enqueued jobs stay queued
	queue := jobs.NewQueue(1, nil)
	memo := cache.NewMemory(time.Minute)
	videosDir := filepath.Join(root, "videos")

	svc := NewLectureService(Deps{
		Store:     store,
		Queue:     queue,
		Answerer:  answerer,
		Cache:     memo,
		VideosDir: videosDir,
	})
	svc.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return &fixture{svc: svc, store: store, queue: queue, cache: memo, videosDir: videosDir}
}

func (f *fixture) lecture(t *testing.T, mutate func(l *persistence.Lecture)) *persistence.Lecture {
	t.Helper()
	l := &persistence.Lecture{Title: "Neural Networks 101"}
	mutate(l)
	require.NoError(t, f.store.CreateLecture(context.Background(), l))
	return l
}

func TestCreateLecture(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateLecture(context.Background(), "  ", "desc")
	assert.True(t, IsKind(err, ErrValidation))

	l, err := f.svc.CreateLecture(context.Background(), " Intro ", " first ")
	require.NoError(t, err)
	assert.NotEmpty(t, l.ID)
	assert.Equal(t, "Intro", l.Title)
	assert.Equal(t, persistence.StatusDraft, l.Status)

	_, err = f.svc.GetLecture(context.Background(), "missing")
	assert.True(t, IsKind(err, ErrNotFound))
}

func TestUpload_StoresVideoAndSchedules(t *testing.T) {
	f := newFixture(t)
	l := f.lecture(t, func(*persistence.Lecture) {})

	res, err := f.svc.Upload(context.Background(), l.ID, "My Talk (final).mp4", bytes.NewReader([]byte("video-bytes")), "Renamed", "")
	require.NoError(t, err)

	wantName := l.ID + "-1700000000123-My_Talk_(final).mp4"
	assert.Equal(t, "videos/"+wantName, res.Lecture.VideoPath)
	assert.Equal(t, int64(11), res.Size)
	require.NotNil(t, res.Job)
	assert.Equal(t, jobs.KindProcess, res.Job.Kind)

	data, err := os.ReadFile(filepath.Join(f.videosDir, wantName))
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))

	got, err := f.store.GetLecture(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, persistence.StatusScheduled, got.Status)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "Neural Networks 101", l.Title)
}

func TestUpload_EmptyBodyRejected(t *testing.T) {
	f := newFixture(t)
	l := f.lecture(t, func(*persistence.Lecture) {})

	_, err := f.svc.Upload(context.Background(), l.ID, "a.mp4", strings.NewReader(""), "", "")
	assert.True(t, IsKind(err, ErrStorage))

	entries, _ := os.ReadDir(f.videosDir)
	assert.Empty(t, entries)
}

func TestUpload_ConflictWhileActive(t *testing.T) {
	f := newFixture(t)
	l := f.lecture(t, func(*persistence.Lecture) {})

	first, err := f.svc.Upload(context.Background(), l.ID, "old.mp4", strings.NewReader("old"), "", "")
	require.NoError(t, err)

	_, err = f.svc.Upload(context.Background(), l.ID, "new.mp4", strings.NewReader("new"), "", "")
	assert.True(t, IsKind(err, ErrConflict), "got %v", err)
	_, err = f.svc.UploadRecording(context.Background(), l.ID, "rec.webm", strings.NewReader("rec"))
	assert.True(t, IsKind(err, ErrConflict), "got %v", err)

	entries, err := os.ReadDir(f.videosDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	got, err := f.store.GetLecture(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Lecture.VideoPath, got.VideoPath)
}

func TestUploadRecording_NamingAndDefaultExt(t *testing.T) {
	f := newFixture(t)
	l := f.lecture(t, func(*persistence.Lecture) {})

	res, err := f.svc.UploadRecording(context.Background(), l.ID, "blob", strings.NewReader("rec"))
	require.NoError(t, err)
	assert.Equal(t, "videos/"+l.ID+"_recording_1700000000123.webm", res.Lecture.VideoPath)

	_, ok := f.queue.Active(l.ID)
	assert.True(t, ok)
}

func TestProcess(t *testing.T) {
	f := newFixture(t)
	noVideo := f.lecture(t, func(*persistence.Lecture) {})
	_, _, err := f.svc.Process(context.Background(), noVideo.ID)
	assert.True(t, IsKind(err, ErrNotFound))

	l := f.lecture(t, func(l *persistence.Lecture) { l.VideoPath = "videos/a.mp4" })
	first, created, err := f.svc.Process(context.Background(), l.ID)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := f.svc.Process(context.Background(), l.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
}

func TestRetry_Eligibility(t *testing.T) {
	tests := []struct {
		name     string
		lecture  persistence.Lecture
		wantKind ErrorKind
		wantOK   bool
	}{
		{name: "failed", lecture: persistence.Lecture{Status: persistence.StatusFailed, VideoPath: "videos/a.mp4"}, wantOK: true},
		{name: "completed", lecture: persistence.Lecture{Status: persistence.StatusCompleted, VideoPath: "videos/a.mp4", Transcript: "t"}, wantOK: true},
		{name: "draft without transcript", lecture: persistence.Lecture{Status: persistence.StatusDraft, VideoPath: "videos/a.mp4"}, wantOK: true},
		{name: "draft with error transcript", lecture: persistence.Lecture{Status: persistence.StatusDraft, VideoPath: "videos/a.mp4", Transcript: "Error during transcription: ffmpeg missing"}, wantOK: true},
		{name: "stale scheduled", lecture: persistence.Lecture{Status: persistence.StatusScheduled, VideoPath: "videos/a.mp4"}, wantOK: true},
		{name: "live", lecture: persistence.Lecture{Status: persistence.StatusLive, VideoPath: "videos/a.mp4"}, wantKind: ErrConflict},
		{name: "no video", lecture: persistence.Lecture{Status: persistence.StatusFailed}, wantKind: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			l := f.lecture(t, func(l *persistence.Lecture) {
				l.Status = tt.lecture.Status
				l.VideoPath = tt.lecture.VideoPath
				l.Transcript = tt.lecture.Transcript
			})

			job, err := f.svc.Retry(context.Background(), l.ID)
			if !tt.wantOK {
				assert.True(t, IsKind(err, tt.wantKind), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, jobs.KindRetry, job.Kind)
		})
	}
}

func TestRetry_ConflictWhileActive(t *testing.T) {
	f := newFixture(t)
	l := f.lecture(t, func(l *persistence.Lecture) {
		l.Status = persistence.StatusFailed
		l.VideoPath = "videos/a.mp4"
	})

	_, err := f.svc.Retry(context.Background(), l.ID)
	require.NoError(t, err)
	_, err = f.svc.Retry(context.Background(), l.ID)
	assert.True(t, IsKind(err, ErrConflict))
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	l := f.lecture(t, func(l *persistence.Lecture) { l.Transcript = neuralTranscript })

	got, err := f.svc.Search(context.Background(), l.ID, "neural")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Today we study neural networks",
		"Is a Neural model always deep",
		"Neural nets generalize",
	}, got)

	_, err = f.svc.Search(context.Background(), l.ID, " ")
	assert.True(t, IsKind(err, ErrValidation))

	empty := f.lecture(t, func(*persistence.Lecture) {})
	_, err = f.svc.Search(context.Background(), empty.ID, "neural")
	assert.True(t, IsKind(err, ErrNotFound))
}

func TestSearchSentences_Limit(t *testing.T) {
	transcript := strings.Repeat("alpha beta. ", 8)
	got := SearchSentences(transcript, "ALPHA", maxSearchResults)
	assert.Len(t, got, 5)
	assert.Empty(t, SearchSentences(transcript, "gamma", maxSearchResults))
}

func TestChat(t *testing.T) {
	f := newFixture(t)
	l := f.lecture(t, func(l *persistence.Lecture) { l.Transcript = neuralTranscript })

	answer, err := f.svc.Chat(context.Background(), l.ID, "tell me about backpropagation please")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(answer, "Backpropagation computes gradients."), answer)

	answer, err = f.svc.Chat(context.Background(), l.ID, "give me a summary")
	require.NoError(t, err)
	assert.Contains(t, answer, "key educational concepts")

	_, err = f.svc.Chat(context.Background(), l.ID, "")
	assert.True(t, IsKind(err, ErrValidation))

	empty := f.lecture(t, func(*persistence.Lecture) {})
	_, err = f.svc.Chat(context.Background(), empty.ID, "hello")
	assert.True(t, IsKind(err, ErrNotFound))
}

func TestStatus_ViewAndCache(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.videosDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.videosDir, "a.mp4"), make([]byte, 1536*1024), 0o644))
	l := f.lecture(t, func(l *persistence.Lecture) {
		l.VideoPath = "videos/a.mp4"
		l.Status = persistence.StatusFailed
		l.FailureKind = "Transcription"
		l.FailureMessage = "all providers failed"
		l.Transcript = strings.Repeat("w", 250)
	})

	view, err := f.svc.Status(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, "FAILED", view.Status)
	assert.True(t, view.VideoFileExists)
	assert.Equal(t, 1.5, view.VideoFileSize)
	assert.Equal(t, "1.6 MB", view.VideoFileSizeHuman)
	assert.True(t, view.HasTranscript)
	assert.Equal(t, 250, view.TranscriptLength)
	assert.Len(t, view.TranscriptPreview, previewChars)
	assert.False(t, view.HasSummary)
	require.NotNil(t, view.Failure)
	assert.Equal(t, "Transcription", view.Failure.Kind)
	assert.Nil(t, view.Job)
	assert.True(t, view.Terminal())

	// a second read is served from the cache even after the row changes
	l.Status = persistence.StatusCompleted
	require.NoError(t, f.store.UpdateLecture(context.Background(), l))
	cached, err := f.svc.Status(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, "FAILED", cached.Status)

	job, err := f.svc.Retry(context.Background(), l.ID)
	require.NoError(t, err)
	fresh, err := f.svc.Status(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", fresh.Status)
	require.NotNil(t, fresh.Job)
	assert.Equal(t, job.ID, fresh.Job.ID)
	assert.Equal(t, "queued", fresh.Job.Status)
}

func TestResolveVideoPath(t *testing.T) {
	assert.Equal(t, "", ResolveVideoPath("/data/videos", ""))
	assert.Equal(t, filepath.Join("/data/videos", "x.mp4"), ResolveVideoPath("/data/videos", "videos/x.mp4"))
	assert.Equal(t, filepath.Join("/data/videos", "passwd"), ResolveVideoPath("/data/videos", "../../etc/passwd"))
}

func TestCaptions(t *testing.T) {
	f := newFixture(t)
	l := f.lecture(t, func(l *persistence.Lecture) {
		l.Transcript = "one two three"
		l.Language = "en"
	})
	require.NoError(t, f.store.ReplaceChunks(context.Background(), l.ID, chunker.New(2).Chunk(l.Transcript)))

	data, format, err := f.svc.Captions(context.Background(), l.ID, "vtt")
	require.NoError(t, err)
	assert.Equal(t, subtitle.FormatVTT, format)
	assert.Equal(t, "WEBVTT\nLanguage: en\n\n"+
		"1\n00:00:00.000 --> 00:00:30.000\none two\n\n"+
		"2\n00:00:30.000 --> 00:01:00.000\nthree\n\n", string(data))

	_, _, err = f.svc.Captions(context.Background(), l.ID, "ass")
	assert.True(t, IsKind(err, ErrValidation))

	empty := f.lecture(t, func(*persistence.Lecture) {})
	_, _, err = f.svc.Captions(context.Background(), empty.ID, "srt")
	assert.True(t, IsKind(err, ErrNotFound))
}
