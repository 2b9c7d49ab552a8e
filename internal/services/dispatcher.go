package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/jobs/worker"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

var ErrDispatchUnavailable = errors.New("job processing is unavailable")

type TaskSubmitter interface {
	Submit(t worker.Task) error
}

// Dispatcher is the entry point for new work: it persists the QUEUED job and
// hands processing to the worker pool without waiting for it.
type Dispatcher struct {
	log       *logger.Logger
	jobs      JobService
	processor *JobProcessor
	pool      TaskSubmitter
}

func NewDispatcher(baseLog *logger.Logger, jobs JobService, processor *JobProcessor, pool TaskSubmitter) *Dispatcher {
	return &Dispatcher{
		log:       baseLog.With("service", "Dispatcher"),
		jobs:      jobs,
		processor: processor,
		pool:      pool,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, in CreateJobInput) (*domain.Job, error) {
	if in.JobType.Valid() && !d.processor.Supports(in.JobType) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedJobType, in.JobType)
	}
	job, err := d.jobs.CreateJob(ctx, in)
	if err != nil {
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	task := worker.Task{
		JobID: job.JobID,
		Ctx:   bg,
		Run: func(ctx context.Context) error {
			return d.processor.Process(ctx, job.JobType, job.JobID, job.Parameters)
		},
	}
	if err := d.pool.Submit(task); err != nil {
		d.log.Error("Job dispatch failed", "job_id", job.JobID, "error", err)
		d.processor.Abort(bg, job.JobID, fmt.Errorf("dispatch failed: %w", err))
		return nil, fmt.Errorf("%w: %v", ErrDispatchUnavailable, err)
	}
	return job, nil
}
