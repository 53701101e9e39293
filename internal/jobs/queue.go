// Package jobs runs lecture processing on a bounded worker pool backed by a
// durable job store.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MimeLyc/lecture-pipeline/pkg/log"
)

const (
	defaultMaxJobs = 1000
	defaultTimeout = 9 * time.Minute
)

type Executor func(ctx context.Context, job *Job) error

// Classifier maps an executor error to the job's error kind.
type Classifier func(err error) string

// FinishHook runs after a job reaches a terminal status and is persisted.
type FinishHook func(job *Job)

type Option func(*Queue)

func WithTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithClassifier(fn Classifier) Option {
	return func(q *Queue) {
		if fn != nil {
			q.classify = fn
		}
	}
}

func WithFinishHook(fn FinishHook) Option {
	return func(q *Queue) {
		q.onFinish = fn
	}
}

func WithMaxJobs(n int) Option {
	return func(q *Queue) {
		q.maxJobs = n
	}
}

type Queue struct {
	workerCount int
	maxJobs     int
	timeout     time.Duration
	store       Store
	classify    Classifier
	onFinish    FinishHook

	mu         sync.RWMutex
	jobs       map[string]*Job
	dedupe     map[string]string
	idCounter  uint64
	started    bool
	pendingIDs chan string

	rootCtx    context.Context
	cancelRoot context.CancelFunc
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewQueue(workerCount int, store Store, opts ...Option) *Queue {
	if workerCount <= 0 {
		workerCount = 1
	}
	rootCtx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		workerCount: workerCount,
		maxJobs:     defaultMaxJobs,
		timeout:     defaultTimeout,
		store:       store,
		classify:    defaultClassifier,
		jobs:        make(map[string]*Job),
		dedupe:      make(map[string]string),
		pendingIDs:  make(chan string, 1024),
		rootCtx:     rootCtx,
		cancelRoot:  cancel,
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.hydrateFromStore(context.Background())
	return q
}

// Enqueue adds a job unless the lecture already has an active one, in which
// case the existing job is returned with created=false.
func (q *Queue) Enqueue(req EnqueueRequest) (*Job, bool) {
	now := time.Now()
	key := req.LectureID

	q.mu.Lock()
	if id, ok := q.dedupe[key]; ok {
		if existing, exists := q.jobs[id]; exists && existing.Status.Active() {
			snapshot := cloneJob(existing)
			q.mu.Unlock()
			return snapshot, false
		}
		delete(q.dedupe, key)
	}

	kind := req.Kind
	if kind == "" {
		kind = KindProcess
	}
	id := fmt.Sprintf("job-%d", atomic.AddUint64(&q.idCounter, 1))
	job := &Job{
		ID:        id,
		Kind:      kind,
		LectureID: req.LectureID,
		DedupeKey: key,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.jobs[id] = job
	if key != "" {
		q.dedupe[key] = id
	}
	started := q.started
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	if started {
		q.enqueuePendingID(id)
	}
	return snapshot, true
}

func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.RLock()
	job, ok := q.jobs[id]
	q.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// List returns every known job, newest first.
func (q *Queue) List() []*Job {
	q.mu.RLock()
	ret := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		ret = append(ret, cloneJob(job))
	}
	q.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		return jobNumber(ret[i].ID) > jobNumber(ret[j].ID)
	})
	return ret
}

// Latest returns the most recently created job for a lecture.
func (q *Queue) Latest(lectureID string) (*Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var latest *Job
	for _, job := range q.jobs {
		if job.LectureID != lectureID {
			continue
		}
		if latest == nil || jobNumber(job.ID) > jobNumber(latest.ID) {
			latest = job
		}
	}
	if latest == nil {
		return nil, false
	}
	return cloneJob(latest), true
}

// Active returns the queued or running job for a lecture, if any.
func (q *Queue) Active(lectureID string) (*Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	id, ok := q.dedupe[lectureID]
	if !ok {
		return nil, false
	}
	job, ok := q.jobs[id]
	if !ok || !job.Status.Active() {
		return nil, false
	}
	return cloneJob(job), true
}

func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	pending := make([]string, 0)
	for id, job := range q.jobs {
		if job.Status == StatusQueued {
			pending = append(pending, id)
		}
	}
	q.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool { return jobNumber(pending[i]) < jobNumber(pending[j]) })
	for _, id := range pending {
		q.enqueuePendingID(id)
	}

	for range q.workerCount {
		q.wg.Add(1)
		go q.worker(exec)
	}
}

// Stop cancels running jobs and waits for workers to exit.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.cancelRoot()
		close(q.stopCh)
		q.wg.Wait()
	})
}

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.pendingIDs:
			job, ok := q.markRunning(id)
			if !ok {
				continue
			}
			if err := q.run(exec, job); err != nil {
				if q.rootCtx.Err() != nil {
					q.markInterrupted(id)
					continue
				}
				q.markFailed(id, err)
				continue
			}
			q.markSuccess(id)
		}
	}
}

func (q *Queue) run(exec Executor, job *Job) (err error) {
	ctx, cancel := context.WithTimeout(q.rootCtx, q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return exec(ctx, job)
}

func (q *Queue) enqueuePendingID(id string) {
	select {
	case q.pendingIDs <- id:
	default:
		go func() {
			select {
			case q.pendingIDs <- id:
			case <-q.stopCh:
			}
		}()
	}
}

func (q *Queue) markRunning(id string) (*Job, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != StatusQueued {
		q.mu.Unlock()
		return nil, false
	}
	job.Status = StatusRunning
	job.Attempts++
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	return snapshot, true
}

func (q *Queue) markSuccess(id string) {
	q.finish(id, StatusSucceeded, nil)
}

func (q *Queue) markFailed(id string, err error) {
	q.finish(id, StatusFailed, err)
}

// markInterrupted puts a job cut short by Stop back to queued so the next
// process picks it up from the store.
func (q *Queue) markInterrupted(id string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.Status = StatusQueued
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	log.Info("job %s for lecture %s interrupted by shutdown, left queued", id, snapshot.LectureID)
	q.persistJob(snapshot)
}

func (q *Queue) finish(id string, status Status, err error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.Status = status
	job.Error = ""
	job.ErrorKind = ""
	if err != nil {
		job.Error = err.Error()
		job.ErrorKind = q.classify(err)
	}
	job.UpdatedAt = time.Now()
	q.releaseDedupeLocked(job)
	pruned := q.pruneTerminalJobsLocked()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	if err != nil {
		log.Warn("job %s for lecture %s failed: %v", id, snapshot.LectureID, err)
	}
	q.persistJob(snapshot)
	q.deleteJobsFromStore(pruned)
	if q.onFinish != nil {
		q.onFinish(snapshot)
	}
}

func (q *Queue) releaseDedupeLocked(job *Job) {
	if job == nil || job.DedupeKey == "" {
		return
	}
	if id, ok := q.dedupe[job.DedupeKey]; ok && id == job.ID {
		delete(q.dedupe, job.DedupeKey)
	}
}

func (q *Queue) pruneTerminalJobsLocked() []string {
	if q.maxJobs <= 0 || len(q.jobs) <= q.maxJobs {
		return nil
	}

	type candidate struct {
		id        string
		updatedAt time.Time
	}
	terminal := make([]candidate, 0, len(q.jobs))
	for id, job := range q.jobs {
		if job == nil || job.Status.Active() {
			continue
		}
		terminal = append(terminal, candidate{id: id, updatedAt: job.UpdatedAt})
	}
	if len(terminal) == 0 {
		return nil
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].updatedAt.Before(terminal[j].updatedAt)
	})

	toRemove := min(len(q.jobs)-q.maxJobs, len(terminal))
	pruned := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		id := terminal[i].id
		q.releaseDedupeLocked(q.jobs[id])
		delete(q.jobs, id)
		pruned = append(pruned, id)
	}
	return pruned
}

func (q *Queue) deleteJobsFromStore(ids []string) {
	if q.store == nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if err := q.store.DeleteJob(context.Background(), id); err != nil {
			log.Error("Failed to delete pruned job %s from store: %v", id, err)
		}
	}
}

// hydrateFromStore reloads jobs after a restart. Jobs that were running when
// the process died go back to queued.
func (q *Queue) hydrateFromStore(ctx context.Context) {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadJobs(ctx)
	if err != nil {
		log.Error("Failed to load jobs from store: %v", err)
		return
	}

	now := time.Now()
	toPersist := make([]*Job, 0)
	q.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		job := cloneJob(raw)
		if job.Status == StatusRunning {
			job.Status = StatusQueued
			job.UpdatedAt = now
			toPersist = append(toPersist, cloneJob(job))
		}
		q.jobs[job.ID] = job
		if job.Status.Active() && job.DedupeKey != "" {
			q.dedupe[job.DedupeKey] = job.ID
		}
		q.updateIDCounterLocked(job.ID)
	}
	q.mu.Unlock()

	for _, job := range toPersist {
		q.persistJob(job)
	}
	if len(loaded) > 0 {
		log.Info("restored %d jobs (%d requeued)", len(loaded), len(toPersist))
	}
}

func (q *Queue) updateIDCounterLocked(jobID string) {
	if n := jobNumber(jobID); n > q.idCounter {
		q.idCounter = n
	}
}

func jobNumber(jobID string) uint64 {
	if !strings.HasPrefix(jobID, "job-") {
		return 0
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(jobID, "job-"), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (q *Queue) persistJob(job *Job) {
	if q.store == nil || job == nil {
		return
	}
	if err := q.store.UpsertJob(context.Background(), job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

func defaultClassifier(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	default:
		return "Unknown"
	}
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	return &tmp
}
