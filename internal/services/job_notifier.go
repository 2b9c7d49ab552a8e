package services

import (
	"context"
	"time"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/realtime"
)

// JobNotifier fans a job change out to stream listeners and the job's webhook.
// It must not block or fail the update that triggered it.
type JobNotifier interface {
	JobUpdated(ctx context.Context, job *domain.Job)
}

// WebhookSender queues a webhook delivery; false means it was dropped.
type WebhookSender interface {
	Enqueue(url string, payload WebhookPayload) bool
}

type jobNotifier struct {
	streams  *realtime.Streams
	webhooks WebhookSender
	now      func() time.Time
}

func NewJobNotifier(streams *realtime.Streams, webhooks WebhookSender) JobNotifier {
	return &jobNotifier{
		streams:  streams,
		webhooks: webhooks,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (n *jobNotifier) JobUpdated(ctx context.Context, job *domain.Job) {
	if job == nil {
		return
	}
	now := n.now()
	sum := job.Summary()

	if n.streams != nil {
		progress := sum.Progress
		n.streams.Publish(context.WithoutCancel(ctx), realtime.Message{
			Type:      realtime.MessageJobUpdate,
			JobID:     sum.JobID,
			Status:    sum.Status.String(),
			Progress:  &progress,
			Result:    sum.Result,
			Error:     sum.Error,
			Timestamp: now,
		})
	}

	if job.WebhookURL != "" && n.webhooks != nil {
		n.webhooks.Enqueue(job.WebhookURL, WebhookPayload{
			JobID:     sum.JobID,
			Status:    sum.Status.String(),
			Progress:  sum.Progress,
			Result:    sum.Result,
			Error:     sum.Error,
			Timestamp: now,
		})
	}
}
