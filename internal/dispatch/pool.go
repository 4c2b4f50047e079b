// Package dispatch runs webhook-triggered pipeline invocations on a
// bounded worker pool so the HTTP boundary can return before processing
// completes. Workers own their error handling; nothing propagates back
// across the handoff.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sujin1135/mangonaut/internal/apperr"
	"github.com/Sujin1135/mangonaut/internal/config"
)

// Job is a unit of background work. The context is the pool's lifetime
// context, cancelled only once shutdown gives up on draining.
type Job func(ctx context.Context)

type queuedJob struct {
	id       string
	name     string
	fn       Job
	enqueued time.Time
}

// Pool is a fixed-size worker pool with a bounded queue. A full queue
// rejects submissions instead of blocking the caller.
type Pool struct {
	jobs   chan queuedJob
	wg     sync.WaitGroup
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewPool starts a pool sized by configuration.
func NewPool(cfg config.DispatchConfig, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:   make(chan queuedJob, cfg.QueueSize),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues a job and returns its id. A full or shut-down pool
// rejects the job with an error; the caller decides whether that is
// fatal.
func (p *Pool) Submit(name string, fn Job) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return "", apperr.New(apperr.CodeInternal, "dispatch pool is shut down")
	}

	job := queuedJob{id: uuid.NewString(), name: name, fn: fn, enqueued: time.Now()}
	select {
	case p.jobs <- job:
		p.logger.Debug("job enqueued",
			zap.String("job_id", job.id),
			zap.String("job", name))
		return job.id, nil
	default:
		return "", apperr.Newf(apperr.CodeInternal, "dispatch queue full, dropping %s", name)
	}
}

// Shutdown stops accepting jobs and waits for queued work to drain. When
// ctx expires first, running jobs are cancelled via their context.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *Pool) run(job queuedJob) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked",
				zap.String("job_id", job.id),
				zap.String("job", job.name),
				zap.Any("panic", r))
		}
	}()

	start := time.Now()
	p.logger.Debug("job started",
		zap.String("job_id", job.id),
		zap.Duration("queue_wait", start.Sub(job.enqueued)))

	job.fn(p.ctx)

	p.logger.Debug("job finished",
		zap.String("job_id", job.id),
		zap.Duration("duration", time.Since(start)))
}
