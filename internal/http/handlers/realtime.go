package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
	"github.com/yungbote/mediaforge-backend/internal/realtime"
	"github.com/yungbote/mediaforge-backend/internal/services"
)

type RealtimeHandler struct {
	log     *logger.Logger
	jobs    services.JobService
	streams *realtime.Streams
}

func NewRealtimeHandler(log *logger.Logger, jobs services.JobService, streams *realtime.Streams) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), jobs: jobs, streams: streams}
}

// GET /api/webhooks/:id/stream
//
// Server-sent events for one job: a connected event, every buffered and new
// job_update, and heartbeats while idle. The stream ends after a terminal
// update or when the client goes away.
func (h *RealtimeHandler) JobStream(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	job, err := h.jobs.GetJobForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondErr(c, err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	h.log.Debug("Job stream open", "job_id", job.JobID, "user_id", userID)
	defer h.log.Debug("Job stream closed", "job_id", job.JobID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	h.write(c, realtime.Message{Type: realtime.MessageConnected, JobID: job.JobID, Timestamp: time.Now().UTC()})

	// A job that finished before anyone listened may have nothing buffered.
	if job.Status.IsTerminal() && h.streams.Buffered(job.JobID) == 0 {
		progress := job.Progress
		h.write(c, realtime.Message{
			Type:      realtime.MessageJobUpdate,
			JobID:     job.JobID,
			Status:    job.Status.String(),
			Progress:  &progress,
			Result:    job.Result,
			Error:     job.Error,
			Timestamp: job.ModifiedAt,
		})
		return
	}

	for msg := range h.streams.Subscribe(ctx, job.JobID) {
		h.write(c, msg)
		if msg.Type == realtime.MessageJobUpdate && isTerminal(msg.Status) {
			return
		}
	}
}

func (h *RealtimeHandler) write(c *gin.Context, msg realtime.Message) {
	c.SSEvent(msg.Type, msg)
	c.Writer.Flush()
}

func isTerminal(status string) bool {
	s, err := domain.ParseStatus(status)
	return err == nil && s.IsTerminal()
}
