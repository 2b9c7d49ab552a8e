package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

var (
	ErrQueueFull  = errors.New("worker queue is full")
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Task is one unit of background work, usually a single job execution.
type Task struct {
	JobID string
	// Ctx is the context Run receives. It must not be tied to the request
	// that submitted the task.
	Ctx context.Context
	Run func(ctx context.Context) error
}

// PanicHandler is called after a task panics, from the worker goroutine.
type PanicHandler func(ctx context.Context, jobID string, err error)

type Config struct {
	Concurrency int
	QueueSize   int
}

type Pool struct {
	log     *logger.Logger
	cfg     Config
	queue   chan Task
	onPanic PanicHandler

	mu      sync.RWMutex
	closed  bool
	started bool
	group   *errgroup.Group
}

func NewPool(baseLog *logger.Logger, cfg Config, onPanic PanicHandler) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 256
	}
	return &Pool{
		log:     baseLog.With("component", "JobWorkerPool"),
		cfg:     cfg,
		queue:   make(chan Task, cfg.QueueSize),
		onPanic: onPanic,
	}
}

// Start launches the workers. Cancelling ctx stops them without draining;
// use Stop for a graceful shutdown.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	g := &errgroup.Group{}
	for i := 0; i < p.cfg.Concurrency; i++ {
		workerID := i + 1
		g.Go(func() error {
			p.loop(ctx, workerID)
			return nil
		})
	}
	p.group = g
	p.log.Info("Starting job worker pool", "concurrency", p.cfg.Concurrency, "queue_size", p.cfg.QueueSize)
}

// Submit enqueues t without blocking.
func (p *Pool) Submit(t Task) error {
	if t.Run == nil {
		return fmt.Errorf("worker: task for job %s has no Run", t.JobID)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) Pending() int { return len(p.queue) }

// Stop refuses new tasks and waits for queued and running ones to finish,
// or for ctx to expire.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	g := p.group
	p.mu.Unlock()

	if g == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.log.Info("Job worker pool drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool stop: %w", ctx.Err())
	}
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			p.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case t, ok := <-p.queue:
			if !ok {
				return
			}
			p.execute(workerID, t)
		}
	}
}

func (p *Pool) execute(workerID int, t Task) {
	ctx := t.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			p.log.Error("Job task panic", "worker_id", workerID, "job_id", t.JobID, "panic", r)
			if p.onPanic != nil {
				p.onPanic(ctx, t.JobID, err)
			}
		}
	}()
	if err := t.Run(ctx); err != nil {
		p.log.Warn("Job task returned error", "worker_id", workerID, "job_id", t.JobID, "error", err)
	}
}
