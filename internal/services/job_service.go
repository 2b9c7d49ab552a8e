package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/mediaforge-backend/internal/data/repos"
	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

const (
	DefaultListLimit = 50
	maxListLimit     = 500
)

type CreateJobInput struct {
	JobType    domain.JobType
	Parameters map[string]any
	UserID     string
	ProjectID  string
	WebhookURL string
}

// JobService is the only writer of job state. Every successful update is
// passed to the notifier.
type JobService interface {
	CreateJob(ctx context.Context, in CreateJobInput) (*domain.Job, error)
	UpdateJob(ctx context.Context, jobID string, upd domain.Update) (*domain.Job, error)
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
	// GetJobForUser is GetJobByID plus an ownership check (ErrForbidden).
	GetJobForUser(ctx context.Context, jobID, userID string) (*domain.Job, error)
	GetUserJobs(ctx context.Context, userID string, limit int) ([]*domain.Job, error)
	GetProjectJobs(ctx context.Context, projectID, userID string, limit int) ([]*domain.Job, error)
}

type jobService struct {
	log    *logger.Logger
	repo   repos.JobRepo
	notify JobNotifier
	now    func() time.Time
}

func NewJobService(baseLog *logger.Logger, repo repos.JobRepo, notify JobNotifier) JobService {
	return &jobService{
		log:    baseLog.With("service", "JobService"),
		repo:   repo,
		notify: notify,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *jobService) CreateJob(ctx context.Context, in CreateJobInput) (*domain.Job, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user_id", domain.ErrValidation)
	}
	if !in.JobType.Valid() {
		return nil, fmt.Errorf("%w: missing or unknown job_type", domain.ErrValidation)
	}
	webhook, err := normalizeWebhookURL(in.WebhookURL)
	if err != nil {
		return nil, err
	}
	params := in.Parameters
	if params == nil {
		params = map[string]any{}
	}

	now := s.now()
	job := &domain.Job{
		JobID:      uuid.New().String(),
		UserID:     userID,
		ProjectID:  strings.TrimSpace(in.ProjectID),
		JobType:    in.JobType,
		Status:     domain.StatusQueued,
		CreatedAt:  now,
		ModifiedAt: now,
		Progress:   0,
		Parameters: params,
		WebhookURL: webhook,
	}
	created, err := s.repo.Create(ctx, job)
	if err != nil {
		return nil, err
	}
	fields := []interface{}{"job_id", created.JobID, "job_type", created.JobType.String(), "user_id", created.UserID}
	if td := ctxutil.GetTraceData(ctx); td != nil && td.RequestID != "" {
		fields = append(fields, "request_id", td.RequestID)
	}
	s.log.Info("Job created", fields...)
	return created, nil
}

func (s *jobService) UpdateJob(ctx context.Context, jobID string, upd domain.Update) (*domain.Job, error) {
	job, err := s.repo.Update(ctx, jobID, upd)
	if err != nil {
		return nil, err
	}
	if s.notify != nil {
		s.notify.JobUpdated(ctx, job)
	}
	if job.Status.IsTerminal() && upd.Status != nil {
		s.log.Info("Job finished", "job_id", job.JobID, "status", job.Status.String())
	}
	return job, nil
}

func (s *jobService) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("%w: missing job_id", domain.ErrValidation)
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	return job, nil
}

func (s *jobService) GetJobForUser(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	job, err := s.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, fmt.Errorf("%w: job %s", domain.ErrForbidden, jobID)
	}
	return job, nil
}

func (s *jobService) GetUserJobs(ctx context.Context, userID string, limit int) ([]*domain.Job, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: missing user_id", domain.ErrValidation)
	}
	return s.repo.FindAll(ctx, repos.JobFilter{UserID: userID}, clampLimit(limit))
}

// GetProjectJobs lists a project's jobs; userID narrows to one owner when set.
func (s *jobService) GetProjectJobs(ctx context.Context, projectID, userID string, limit int) ([]*domain.Job, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: missing project_id", domain.ErrValidation)
	}
	return s.repo.FindAll(ctx, repos.JobFilter{ProjectID: projectID, UserID: userID}, clampLimit(limit))
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}

func normalizeWebhookURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: webhook_url must be an absolute http(s) URL", domain.ErrValidation)
	}
	return u.String(), nil
}
