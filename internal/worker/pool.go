package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"hemisphere-atlas/internal/logger"
	"hemisphere-atlas/internal/models"
	"hemisphere-atlas/internal/services"
	"hemisphere-atlas/internal/session"
)

var (
	ErrQueueFull   = errors.New("generation queue is full")
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// SessionLookup finds the widgets a job belongs to.
type SessionLookup interface {
	Get(id uuid.UUID) (*session.Session, bool)
}

// Pool runs generation jobs on a fixed number of goroutines. Each job is a
// single attempt; failures land in the widget, not back on the queue.
type Pool struct {
	sessions    SessionLookup
	log         logger.ILogger
	jobs        chan models.Job
	workerCount int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewPool(sessions SessionLookup, log logger.ILogger, workerCount, queueSize int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sessions:    sessions,
		log:         log,
		jobs:        make(chan models.Job, queueSize),
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Info("worker", fmt.Sprintf("Started %d worker goroutines", p.workerCount), nil)
}

// Stop cancels in-flight generation and waits for the workers to exit.
// Jobs still queued are dropped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// Submit enqueues a job without blocking.
func (p *Pool) Submit(job models.Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			p.log.Debug("worker", fmt.Sprintf("Worker %d shutting down", id), nil)
			return
		case job := <-p.jobs:
			p.process(id, job)
		}
	}
}

func (p *Pool) process(workerID int, job models.Job) {
	sess, ok := p.sessions.Get(job.SessionID)
	if !ok {
		p.log.Warn("worker", "session gone before job ran", map[string]interface{}{
			"job_id":     job.ID.String(),
			"session_id": job.SessionID.String(),
		})
		return
	}

	started := time.Now()
	var err error
	switch job.Type {
	case models.JobTypeCaseStudy:
		err = sess.Quiz.Resolve(p.ctx, job.Seq)
	case models.JobTypeDiseaseSet:
		err = sess.Gallery.Resolve(p.ctx, job.Seq)
	default:
		p.log.Error("worker", "unknown job type", map[string]interface{}{
			"job_id": job.ID.String(),
			"type":   job.Type,
		})
		return
	}

	details := map[string]interface{}{
		"worker":      workerID,
		"job_id":      job.ID.String(),
		"type":        job.Type,
		"session_id":  job.SessionID.String(),
		"duration_ms": time.Since(started).Milliseconds(),
	}
	if err != nil {
		details["error"] = err
		details["kind"] = services.ErrorKind(err)
		p.log.Error("worker", "generation job failed", details)
		return
	}
	p.log.Info("worker", "generation job completed", details)
}
