package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/chunker"
	"github.com/MimeLyc/lecture-pipeline/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "lectures.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLStore_LectureRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	lec := &Lecture{Title: "Intro to ML", Description: "week 1"}
	require.NoError(t, store.CreateLecture(ctx, lec))
	require.NotEmpty(t, lec.ID)

	got, err := store.GetLecture(ctx, lec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Intro to ML", got.Title)
	assert.Equal(t, StatusDraft, got.Status)
	assert.Empty(t, got.Transcript)

	got.VideoPath = "videos/x.mp4"
	got.Transcript = "hello"
	got.Summary = "sum"
	got.Language = "en"
	got.Status = StatusFailed
	got.FailureKind = "Transcription"
	got.FailureMessage = "all providers failed"
	require.NoError(t, store.UpdateLecture(ctx, got))

	again, err := store.GetLecture(ctx, lec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, again.Status)
	assert.Equal(t, "hello", again.Transcript)
	assert.Equal(t, "en", again.Language)
	assert.Equal(t, "Transcription", again.FailureKind)
	assert.False(t, again.UpdatedAt.Before(again.CreatedAt))

	again.FailureKind, again.FailureMessage = "", ""
	require.NoError(t, store.UpdateLecture(ctx, again))
	cleared, err := store.GetLecture(ctx, lec.ID)
	require.NoError(t, err)
	assert.Empty(t, cleared.FailureKind)

	all, err := store.ListLectures(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLStore_UpdateProcessingKeepsUploadColumns(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	lec := &Lecture{Title: "old title", VideoPath: "videos/old.mp4"}
	require.NoError(t, store.CreateLecture(ctx, lec))

	lec.Title = "new title"
	lec.VideoPath = "videos/new.mp4"
	require.NoError(t, store.UpdateLecture(ctx, lec))

	require.NoError(t, store.UpdateProcessing(ctx, lec.ID, ProcessingUpdate{
		Status:     StatusCompleted,
		Transcript: "hello",
		Summary:    "sum",
		Language:   "en",
	}))

	got, err := store.GetLecture(ctx, lec.ID)
	require.NoError(t, err)
	assert.Equal(t, "new title", got.Title)
	assert.Equal(t, "videos/new.mp4", got.VideoPath)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "hello", got.Transcript)
	assert.Empty(t, got.FailureKind)

	require.ErrorIs(t, store.UpdateProcessing(ctx, "missing", ProcessingUpdate{Status: StatusFailed}), ErrNotFound)
}

func TestSQLStore_NotFound(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, err := store.GetLecture(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.UpdateLecture(context.Background(), &Lecture{ID: "missing"}), ErrNotFound)
}

func TestSQLStore_ReplaceChunks(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	lec := &Lecture{Title: "t"}
	require.NoError(t, store.CreateLecture(ctx, lec))
	other := &Lecture{Title: "other"}
	require.NoError(t, store.CreateLecture(ctx, other))

	first := chunker.New(2).Chunk("a b c d e")
	require.Len(t, first, 3)
	require.NoError(t, store.ReplaceChunks(ctx, lec.ID, first))
	require.NoError(t, store.ReplaceChunks(ctx, other.ID, chunker.New(2).Chunk("x y")))

	second := chunker.New(10).Chunk("only one chunk now")
	require.NoError(t, store.ReplaceChunks(ctx, lec.ID, second))

	got, err := store.ListChunks(ctx, lec.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "only one chunk now", got[0].Text)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 30, got[0].EndTime)
	assert.True(t, got[0].TimingApproximate)

	untouched, err := store.ListChunks(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, untouched, 1)

	require.NoError(t, store.ReplaceChunks(ctx, lec.ID, nil))
	got, err = store.ListChunks(ctx, lec.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLStore_JobsRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	job := &jobs.Job{
		ID:        "job-1",
		Kind:      jobs.KindRetry,
		LectureID: "lec-1",
		DedupeKey: "lec-1",
		Status:    jobs.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.UpsertJob(ctx, job))

	job.Status = jobs.StatusFailed
	job.Attempts = 1
	job.Error = "timeout"
	job.ErrorKind = "Timeout"
	require.NoError(t, store.UpsertJob(ctx, job))

	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, job.ID, all[0].ID)
	assert.Equal(t, jobs.KindRetry, all[0].Kind)
	assert.Equal(t, jobs.StatusFailed, all[0].Status)
	assert.Equal(t, 1, all[0].Attempts)
	assert.Equal(t, "Timeout", all[0].ErrorKind)

	require.NoError(t, store.DeleteJob(ctx, job.ID))
	all, err = store.LoadJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLStore_ReopenKeepsSchema(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "lectures.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.CreateLecture(context.Background(), &Lecture{ID: "fixed", Title: "t"}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	_, err = reopened.GetLecture(context.Background(), "fixed")
	require.NoError(t, err)
}

func TestMigrationHelpers(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a(x)"},
		splitStatements("CREATE TABLE a (x INT);\n\nCREATE INDEX i ON a(x);\n"))

	dsn, err := mysqlDSN("user:pw@tcp(localhost:3306)/lectures")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
}
