package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/http/response"
	"github.com/yungbote/mediaforge-backend/internal/platform/apierr"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
	"github.com/yungbote/mediaforge-backend/internal/services"
)

type JobHandler struct {
	log        *logger.Logger
	jobs       services.JobService
	dispatcher *services.Dispatcher
}

func NewJobHandler(log *logger.Logger, jobs services.JobService, dispatcher *services.Dispatcher) *JobHandler {
	return &JobHandler{log: log.With("handler", "JobHandler"), jobs: jobs, dispatcher: dispatcher}
}

type createJobRequest struct {
	JobType    string         `json:"job_type" binding:"required"`
	Parameters map[string]any `json:"parameters"`
	ProjectID  string         `json:"project_id"`
	WebhookURL string         `json:"webhook_url"`
}

// POST /api/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, apierr.BadRequest("invalid_request", fmt.Errorf("invalid request body: %w", err)))
		return
	}
	jobType, err := domain.ParseJobType(req.JobType)
	if err != nil {
		respondErr(c, err)
		return
	}
	job, err := h.dispatcher.Dispatch(c.Request.Context(), services.CreateJobInput{
		JobType:    jobType,
		Parameters: req.Parameters,
		UserID:     userID,
		ProjectID:  req.ProjectID,
		WebhookURL: req.WebhookURL,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

type generate3DRequest struct {
	Prompt     string `json:"prompt" binding:"required"`
	ProjectID  string `json:"project_id"`
	WebhookURL string `json:"webhook_url"`
}

// POST /api/generate-3d-asset
func (h *JobHandler) Generate3DAsset(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	var req generate3DRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		respondErr(c, apierr.BadRequest("invalid_request", fmt.Errorf("prompt is required")))
		return
	}
	job, err := h.dispatcher.Dispatch(c.Request.Context(), services.CreateJobInput{
		JobType:    domain.JobTypeObject,
		Parameters: map[string]any{"prompt": req.Prompt},
		UserID:     userID,
		ProjectID:  req.ProjectID,
		WebhookURL: req.WebhookURL,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondAccepted(c, job.JobID, job.Status.String())
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	job, err := h.jobs.GetJobForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/jobs?limit=N
func (h *JobHandler) ListJobs(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	jobs, err := h.jobs.GetUserJobs(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": jobs})
}

// GET /api/projects/:id/jobs?limit=N
func (h *JobHandler) ListProjectJobs(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	jobs, err := h.jobs.GetProjectJobs(c.Request.Context(), c.Param("id"), userID, queryLimit(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": jobs})
}
