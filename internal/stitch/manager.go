package stitch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// queueCapacity bounds how many jobs may wait behind the workers.
const queueCapacity = 256

// Logger is the minimal logging interface the manager needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// job is the manager's mutable record of one stitch request. State is
// guarded by the manager mutex; the cancel flag is atomic so a running
// worker can poll it without locking.
type job struct {
	id     string
	tracks []string
	paths  []string

	state    State
	done     int
	artifact string
	err      string

	submittedAt time.Time
	startedAt   time.Time
	finishedAt  time.Time

	cancel atomic.Bool
}

// Manager runs stitch jobs on a fixed-size worker pool. Jobs are processed
// in submission order; at most the configured number run at once and the
// rest wait in a FIFO queue.
type Manager struct {
	resolver TrackResolver
	stitcher Stitcher
	logger   Logger

	mu   sync.Mutex
	jobs map[string]*job

	queue   chan *job
	stop    chan struct{}
	closed  bool
	workers sync.WaitGroup
}

// NewManager starts a manager running up to concurrency jobs in parallel.
func NewManager(resolver TrackResolver, stitcher Stitcher, concurrency int, logger Logger) *Manager {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = noopLogger{}
	}

	m := &Manager{
		resolver: resolver,
		stitcher: stitcher,
		logger:   logger,
		jobs:     make(map[string]*job),
		queue:    make(chan *job, queueCapacity),
		stop:     make(chan struct{}),
	}
	for i := 0; i < concurrency; i++ {
		m.workers.Add(1)
		go m.worker()
	}
	return m
}

// Submit validates and queues a stitch job, returning its ID immediately.
// Every track must resolve; a job with any unknown track is rejected whole.
func (m *Manager) Submit(tracks []string) (string, error) {
	if len(tracks) == 0 {
		return "", ErrEmptyJob
	}

	paths := make([]string, len(tracks))
	for i, trk := range tracks {
		path, err := m.resolver.Resolve(trk)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrUnknownTrack, trk, err)
		}
		paths[i] = path
	}

	j := &job{
		id:          "stitch-" + uuid.New().String(),
		tracks:      append([]string(nil), tracks...),
		paths:       paths,
		state:       StateQueued,
		submittedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrShutdown
	}
	m.jobs[j.id] = j
	m.mu.Unlock()

	select {
	case m.queue <- j:
	default:
		m.mu.Lock()
		delete(m.jobs, j.id)
		m.mu.Unlock()
		return "", fmt.Errorf("%w: queue full", ErrShutdown)
	}

	m.logger.Info("stitch job queued", "job_id", j.id, "tracks", len(tracks))
	return j.id, nil
}

// Status returns a snapshot of the job.
func (m *Manager) Status(jobID string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return snapshot(j), nil
}

// List returns snapshots of all known jobs.
func (m *Manager) List() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Status, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, snapshot(j))
	}
	return out
}

// snapshot copies a job's visible state. Caller holds m.mu.
func snapshot(j *job) Status {
	percent := 0
	if len(j.tracks) > 0 {
		percent = j.done * 100 / len(j.tracks)
	}
	return Status{
		ID:          j.id,
		State:       j.state,
		Tracks:      append([]string(nil), j.tracks...),
		Done:        j.done,
		Percent:     percent,
		Artifact:    j.artifact,
		Error:       j.err,
		SubmittedAt: j.submittedAt,
		StartedAt:   j.startedAt,
		FinishedAt:  j.finishedAt,
	}
}

// Cancel stops a job. A queued job is cancelled on the spot; a running job
// is flagged and stops at the next track boundary, discarding its partial
// artifact. Cancelling a finished job returns ErrAlreadyFinished.
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	switch j.state {
	case StateQueued:
		j.state = StateCancelled
		j.finishedAt = time.Now().UTC()
		m.logger.Info("queued stitch job cancelled", "job_id", jobID)
		return nil
	case StateRunning:
		j.cancel.Store(true)
		m.logger.Info("running stitch job flagged for cancellation", "job_id", jobID)
		return nil
	default:
		return fmt.Errorf("%w: %s is %s", ErrAlreadyFinished, jobID, j.state)
	}
}

func (m *Manager) worker() {
	defer m.workers.Done()

	for {
		select {
		case <-m.stop:
			return
		case j := <-m.queue:
			// The job may have been cancelled while waiting.
			m.mu.Lock()
			if j.state != StateQueued {
				m.mu.Unlock()
				continue
			}
			j.state = StateRunning
			j.startedAt = time.Now().UTC()
			m.mu.Unlock()

			m.run(j)
		}
	}
}

// run executes one job to a terminal state.
func (m *Manager) run(j *job) {
	ref, err := m.stitch(j)

	m.mu.Lock()
	j.finishedAt = time.Now().UTC()
	switch {
	case err == nil:
		j.state = StateCompleted
		j.artifact = ref
	case errors.Is(err, errCancelled):
		j.state = StateCancelled
	default:
		j.state = StateFailed
		j.err = err.Error()
	}
	state := j.state
	m.mu.Unlock()

	m.logger.Info("stitch job finished", "job_id", j.id, "state", string(state))
}

// stitch appends every track to a fresh artifact, checking the cancel flag
// at each track boundary. Any exit other than success discards the partial
// artifact.
func (m *Manager) stitch(j *job) (string, error) {
	artifact, err := m.stitcher.Create(j.id)
	if err != nil {
		return "", fmt.Errorf("creating artifact: %w", err)
	}

	ctx := context.Background()
	for i, path := range j.paths {
		if j.cancel.Load() || m.stopping() {
			artifact.Discard()
			return "", errCancelled
		}

		if err := artifact.AppendTrack(ctx, path); err != nil {
			artifact.Discard()
			return "", fmt.Errorf("appending track %s: %w", j.tracks[i], err)
		}

		m.mu.Lock()
		j.done = i + 1
		m.mu.Unlock()
	}

	if j.cancel.Load() {
		artifact.Discard()
		return "", errCancelled
	}
	return artifact.Close()
}

func (m *Manager) stopping() bool {
	select {
	case <-m.stop:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting jobs, cancels everything queued, flags running
// jobs to stop at their next track boundary and waits for the workers,
// bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	now := time.Now().UTC()
	for _, j := range m.jobs {
		switch j.state {
		case StateQueued:
			j.state = StateCancelled
			j.finishedAt = now
		case StateRunning:
			j.cancel.Store(true)
		}
	}
	m.mu.Unlock()

	close(m.stop)

	done := make(chan struct{})
	go func() {
		m.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stitch shutdown: %w", ctx.Err())
	}
}
