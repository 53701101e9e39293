package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func newMemoryStore() *memoryStore {
	return &memoryStore{jobs: make(map[string]*Job)}
}

func (m *memoryStore) LoadJobs(_ context.Context) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		ret = append(ret, cloneJob(j))
	}
	return ret, nil
}

func (m *memoryStore) UpsertJob(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *memoryStore) DeleteJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

func (m *memoryStore) get(id string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return cloneJob(j), ok
}

func waitStatus(t *testing.T, q *Queue, id string, want Status) *Job {
	t.Helper()
	var got *Job
	require.Eventually(t, func() bool {
		var ok bool
		got, ok = q.Get(id)
		return ok && got.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return got
}

func TestQueue_Enqueue_DeduplicatesActiveLecture(t *testing.T) {
	q := NewQueue(2, nil)

	jobA, createdA := q.Enqueue(EnqueueRequest{Kind: KindProcess, LectureID: "lec-1"})
	jobB, createdB := q.Enqueue(EnqueueRequest{Kind: KindRetry, LectureID: "lec-1"})
	jobC, createdC := q.Enqueue(EnqueueRequest{LectureID: "lec-2"})

	require.True(t, createdA)
	require.False(t, createdB)
	require.True(t, createdC)
	assert.Equal(t, jobA.ID, jobB.ID)
	assert.Equal(t, KindProcess, jobC.Kind)
	assert.Equal(t, StatusQueued, jobA.Status)

	active, ok := q.Active("lec-1")
	require.True(t, ok)
	assert.Equal(t, jobA.ID, active.ID)
}

func TestQueue_Worker_TransitionsStatus(t *testing.T) {
	store := newMemoryStore()
	q := NewQueue(1, store)
	q.Start(func(_ context.Context, _ *Job) error { return nil })
	defer q.Stop()

	job, _ := q.Enqueue(EnqueueRequest{Kind: KindProcess, LectureID: "lec-1"})
	got := waitStatus(t, q, job.ID, StatusSucceeded)
	assert.Equal(t, 1, got.Attempts)
	assert.Empty(t, got.Error)

	_, ok := q.Active("lec-1")
	assert.False(t, ok)

	require.Eventually(t, func() bool {
		stored, ok := store.get(job.ID)
		return ok && stored.Status == StatusSucceeded
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_AllowsRetryAfterFailure(t *testing.T) {
	q := NewQueue(1, nil, WithClassifier(func(error) string { return "Transcription" }))
	var attempts atomic.Int32
	q.Start(func(_ context.Context, _ *Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("all providers failed")
		}
		return nil
	})
	defer q.Stop()

	first, created := q.Enqueue(EnqueueRequest{Kind: KindProcess, LectureID: "lec-1"})
	require.True(t, created)
	failed := waitStatus(t, q, first.ID, StatusFailed)
	assert.Equal(t, "all providers failed", failed.Error)
	assert.Equal(t, "Transcription", failed.ErrorKind)

	second, created := q.Enqueue(EnqueueRequest{Kind: KindRetry, LectureID: "lec-1"})
	require.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
	waitStatus(t, q, second.ID, StatusSucceeded)

	latest, ok := q.Latest("lec-1")
	require.True(t, ok)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, KindRetry, latest.Kind)
}

func TestQueue_TimeoutReachesExecutor(t *testing.T) {
	q := NewQueue(1, nil, WithTimeout(50*time.Millisecond))
	q.Start(func(ctx context.Context, _ *Job) error {
		<-ctx.Done()
		return ctx.Err()
	})
	defer q.Stop()

	job, _ := q.Enqueue(EnqueueRequest{LectureID: "slow"})
	got := waitStatus(t, q, job.ID, StatusFailed)
	assert.Equal(t, "Timeout", got.ErrorKind)
}

func TestQueue_StopCancelsRunningJob(t *testing.T) {
	q := NewQueue(1, nil, WithTimeout(time.Minute))
	started := make(chan struct{})
	var sawCancel atomic.Bool
	q.Start(func(ctx context.Context, _ *Job) error {
		close(started)
		<-ctx.Done()
		sawCancel.Store(errors.Is(ctx.Err(), context.Canceled))
		return ctx.Err()
	})

	q.Enqueue(EnqueueRequest{LectureID: "lec-1"})
	<-started
	q.Stop()
	assert.True(t, sawCancel.Load())
}

func TestQueue_StopLeavesInterruptedJobQueued(t *testing.T) {
	store := newMemoryStore()
	var finished atomic.Int32
	q := NewQueue(1, store, WithTimeout(time.Minute), WithFinishHook(func(*Job) { finished.Add(1) }))
	started := make(chan struct{})
	q.Start(func(ctx context.Context, _ *Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	job, _ := q.Enqueue(EnqueueRequest{LectureID: "lec-1"})
	<-started
	q.Stop()

	got, ok := q.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, StatusQueued, got.Status)
	assert.Empty(t, got.Error)
	assert.Zero(t, finished.Load())
	stored, ok := store.get(job.ID)
	require.True(t, ok)
	assert.Equal(t, StatusQueued, stored.Status)

	next := NewQueue(1, store)
	done := make(chan string, 1)
	next.Start(func(_ context.Context, j *Job) error {
		done <- j.ID
		return nil
	})
	defer next.Stop()
	assert.Equal(t, job.ID, <-done)
	waitStatus(t, next, job.ID, StatusSucceeded)
}

func TestQueue_RecoversPanic(t *testing.T) {
	q := NewQueue(1, nil)
	q.Start(func(context.Context, *Job) error { panic("boom") })
	defer q.Stop()

	job, _ := q.Enqueue(EnqueueRequest{LectureID: "lec-1"})
	got := waitStatus(t, q, job.ID, StatusFailed)
	assert.Contains(t, got.Error, "boom")
	assert.Equal(t, "Unknown", got.ErrorKind)
}

func TestQueue_PrunesTerminalJobs(t *testing.T) {
	store := newMemoryStore()
	q := NewQueue(1, store, WithMaxJobs(2))
	q.Start(func(context.Context, *Job) error { return nil })
	defer q.Stop()

	var last *Job
	for _, id := range []string{"a", "b", "c", "d"} {
		last, _ = q.Enqueue(EnqueueRequest{LectureID: id})
		waitStatus(t, q, last.ID, StatusSucceeded)
	}
	assert.Len(t, q.List(), 2)
	_, ok := q.Get("job-1")
	assert.False(t, ok)
	assert.Equal(t, last.ID, q.List()[0].ID)
}

func TestQueue_FinishHook(t *testing.T) {
	finished := make(chan *Job, 1)
	q := NewQueue(1, nil, WithFinishHook(func(j *Job) { finished <- j }))
	q.Start(func(context.Context, *Job) error { return errors.New("boom") })
	defer q.Stop()

	job, _ := q.Enqueue(EnqueueRequest{LectureID: "lec-1"})
	select {
	case got := <-finished:
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, StatusFailed, got.Status)
		assert.Equal(t, "Unknown", got.ErrorKind)
	case <-time.After(2 * time.Second):
		t.Fatal("finish hook not called")
	}
}
