package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/jobs/runtime"
	"github.com/yungbote/mediaforge-backend/internal/observability"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

var errNoOutcome = errors.New("pipeline finished without a result")

// JobProcessor runs the pipeline registered for a job type. Pipeline errors
// end up on the job as FAILED and are not returned.
type JobProcessor struct {
	log      *logger.Logger
	registry *runtime.Registry
	jobs     runtime.Updater
}

func NewJobProcessor(baseLog *logger.Logger, registry *runtime.Registry, jobs runtime.Updater) *JobProcessor {
	return &JobProcessor{
		log:      baseLog.With("service", "JobProcessor"),
		registry: registry,
		jobs:     jobs,
	}
}

func (p *JobProcessor) Supports(t domain.JobType) bool {
	_, ok := p.registry.Get(t)
	return ok
}

// Process returns ErrUnsupportedJobType without touching the job when no
// pipeline exists, and otherwise only errors that kept it from recording the
// outcome.
func (p *JobProcessor) Process(ctx context.Context, jobType domain.JobType, jobID string, params map[string]any) error {
	pl, ok := p.registry.Get(jobType)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedJobType, jobType)
	}

	ctx, span := observability.StartJobSpan(ctx, "job.process", jobID, jobType.String())
	defer span.End()

	jc := runtime.NewContext(ctx, jobID, jobType, params, p.jobs, p.log)
	if err := jc.Start(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start")
		return fmt.Errorf("start job %s: %w", jobID, err)
	}

	started := time.Now()
	runErr := pl.Run(jc)
	if runErr == nil && !jc.Terminal() {
		runErr = errNoOutcome
	}
	if runErr == nil {
		jc.Log.Info("Job completed", "duration_ms", time.Since(started).Milliseconds())
		return nil
	}

	span.RecordError(runErr)
	span.SetStatus(codes.Error, "run")
	jc.Log.Warn("Job failed", "error", runErr, "duration_ms", time.Since(started).Milliseconds())
	if err := jc.Fail(runErr); err != nil {
		return fmt.Errorf("record failure for job %s: %w", jobID, err)
	}
	return nil
}

// Abort fails a job from outside its pipeline (panic, dispatch failure). A job
// that already finished is left alone.
func (p *JobProcessor) Abort(ctx context.Context, jobID string, cause error) {
	msg := "job aborted"
	if cause != nil {
		msg = cause.Error()
	}
	now := time.Now().UTC()
	_, err := p.jobs.UpdateJob(ctx, jobID, domain.Update{
		Status:      domain.StatusPtr(domain.StatusFailed),
		Error:       &msg,
		CompletedAt: &now,
	})
	if err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
		p.log.Error("Failed to abort job", "job_id", jobID, "error", err)
	}
}
