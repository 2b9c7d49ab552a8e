package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

// AssetStore is the part of the asset bucket the API reads and cleans up.
type AssetStore interface {
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type AssetLink struct {
	SignedURL   string    `json:"signed_url"`
	AssetID     string    `json:"asset_id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	ContentType string    `json:"content_type,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type AssetService struct {
	log    *logger.Logger
	jobs   JobService
	store  AssetStore
	expiry time.Duration
}

func NewAssetService(baseLog *logger.Logger, jobs JobService, store AssetStore, expiry time.Duration) *AssetService {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &AssetService{
		log:    baseLog.With("service", "AssetService"),
		jobs:   jobs,
		store:  store,
		expiry: expiry,
	}
}

// AssetURL signs a fresh URL for the asset of a completed job owned by userID.
func (s *AssetService) AssetURL(ctx context.Context, userID, jobID string) (*AssetLink, error) {
	job, err := s.jobs.GetJobForUser(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("%w: job %s is %s", domain.ErrJobNotCompleted, jobID, job.Status)
	}
	key, _ := job.Result["storage_path"].(string)
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: job %s", domain.ErrAssetMissing, jobID)
	}
	now := time.Now().UTC()
	signed, err := s.store.SignedURL(ctx, key, s.expiry)
	if err != nil {
		return nil, fmt.Errorf("sign asset url: %w", err)
	}
	link := &AssetLink{
		SignedURL:   signed,
		AssetID:     jobID,
		StoragePath: key,
		ExpiresAt:   now.Add(s.expiry),
	}
	link.Filename, _ = job.Result["filename"].(string)
	link.ContentType, _ = job.Result["content_type"].(string)
	return link, nil
}

// ListAssets returns the object keys stored for a job.
func (s *AssetService) ListAssets(ctx context.Context, userID, jobID string) ([]string, error) {
	job, err := s.jobs.GetJobForUser(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	keys, err := s.store.ListKeys(ctx, jobPrefix(job.JobID))
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return keys, nil
}

// DeleteAssets removes a finished job's stored files. The job record is kept.
func (s *AssetService) DeleteAssets(ctx context.Context, userID, jobID string) (int, error) {
	job, err := s.jobs.GetJobForUser(ctx, jobID, userID)
	if err != nil {
		return 0, err
	}
	if !job.Status.IsTerminal() {
		return 0, fmt.Errorf("%w: job %s is %s", domain.ErrJobNotCompleted, jobID, job.Status)
	}
	n, err := s.store.DeletePrefix(ctx, jobPrefix(job.JobID))
	if err != nil {
		return 0, fmt.Errorf("delete assets: %w", err)
	}
	s.log.Info("Job assets deleted", "job_id", jobID, "objects", n)
	return n, nil
}

func jobPrefix(jobID string) string {
	return path.Join("assets", jobID) + "/"
}
