// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docbot/core"
	"github.com/poiesic/docbot/metrics"
)

// Runner performs one ingestion run. *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context) (*core.IngestResult, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) (*core.IngestResult, error)

// Run calls f(ctx).
func (f RunnerFunc) Run(ctx context.Context) (*core.IngestResult, error) {
	return f(ctx)
}

// Resetter empties the vector store. storage.VectorStore implements it.
type Resetter interface {
	Clear(ctx context.Context) error
}

// JobRunner runs ingestion in the background, one job at a time, and keeps
// the status of every job it started.
type JobRunner struct {
	runner   Runner
	resetter Resetter
	pool     *ants.Pool
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	jobs      map[string]*core.Job
	latest    string
	active    string
	resetting bool
	closed    bool
}

// NewJobRunner creates a runner. resetter may be nil, in which case Reset is
// a no-op.
func NewJobRunner(runner Runner, resetter Resetter) (*JobRunner, error) {
	if runner == nil {
		return nil, ErrRunnerRequired
	}
	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobRunner{
		runner:   runner,
		resetter: resetter,
		pool:     pool,
		logger:   slog.Default().With("component", "jobs"),
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*core.Job),
	}, nil
}

// Start queues a new job and returns its pending snapshot. The job runs
// detached from ctx's cancellation but keeps its values.
func (r *JobRunner) Start(ctx context.Context) (*core.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRunnerClosed
	}
	if r.active != "" {
		return nil, ErrJobRunning
	}
	if r.resetting {
		return nil, ErrResetInProgress
	}

	job := &core.Job{
		ID:        uuid.NewString(),
		Status:    core.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	runCtx, stop := mergeCancel(context.WithoutCancel(ctx), r.ctx)

	r.wg.Add(1)
	if err := r.pool.Submit(func() {
		defer r.wg.Done()
		defer stop()
		r.execute(runCtx, job.ID)
	}); err != nil {
		r.wg.Done()
		stop()
		return nil, err
	}

	r.jobs[job.ID] = job
	r.latest = job.ID
	r.active = job.ID
	r.logger.Info("queued ingestion job", "job", job.ID)
	return snapshot(job), nil
}

func (r *JobRunner) execute(ctx context.Context, id string) {
	r.update(id, func(j *core.Job) {
		j.Status = core.JobRunning
		j.StartedAt = time.Now().UTC()
	})

	result, err := r.runner.Run(ctx)

	r.update(id, func(j *core.Job) {
		j.FinishedAt = time.Now().UTC()
		j.Result = result
		if err != nil {
			j.Status = core.JobFailed
			j.Error = err.Error()
		} else {
			j.Status = core.JobCompleted
		}
	})

	r.mu.Lock()
	if r.active == id {
		r.active = ""
	}
	r.mu.Unlock()

	if err != nil {
		metrics.JobsTotal.WithLabelValues(string(core.JobFailed)).Inc()
		r.logger.Error("ingestion job failed", "job", id, "err", err)
		return
	}
	metrics.JobsTotal.WithLabelValues(string(core.JobCompleted)).Inc()
	r.logger.Info("ingestion job completed", "job", id)
}

func (r *JobRunner) update(id string, fn func(*core.Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		fn(job)
	}
}

// Get returns a snapshot of the job with id.
func (r *JobRunner) Get(id string) (*core.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return snapshot(job), nil
}

// Latest returns a snapshot of the most recently started job.
func (r *JobRunner) Latest() (*core.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == "" {
		return nil, false
	}
	return snapshot(r.jobs[r.latest]), true
}

// Running reports whether a job is pending or running.
func (r *JobRunner) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active != ""
}

// Reset clears the vector store. It is refused while a job is in flight and
// leaves the ledger alone. Start is refused until the store is cleared, while
// job status stays readable.
func (r *JobRunner) Reset(ctx context.Context) error {
	r.mu.Lock()
	if r.active != "" {
		r.mu.Unlock()
		return ErrJobRunning
	}
	if r.resetting {
		r.mu.Unlock()
		return ErrResetInProgress
	}
	if r.resetter == nil {
		r.mu.Unlock()
		return nil
	}
	r.resetting = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.resetting = false
		r.mu.Unlock()
	}()
	return r.resetter.Clear(ctx)
}

// Wait blocks until no job is in flight.
func (r *JobRunner) Wait() {
	r.wg.Wait()
}

// Close cancels any running job, waits for it and releases the pool.
func (r *JobRunner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	r.pool.Release()
}

func snapshot(job *core.Job) *core.Job {
	out := *job
	if job.Result != nil {
		result := *job.Result
		out.Result = &result
	}
	return &out
}

// mergeCancel returns a context carrying parent's values that is also
// cancelled when other is.
func mergeCancel(parent, other context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(other, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
