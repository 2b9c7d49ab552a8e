package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/platform/docstore"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

const Collection = "jobs"

// Filter holds conjunctive equality predicates; empty fields are ignored.
type Filter struct {
	UserID    string
	ProjectID string
	Status    domain.Status
	JobType   domain.JobType
}

type JobRepo interface {
	Create(ctx context.Context, job *domain.Job) (*domain.Job, error)
	// GetByID returns nil, nil when the job does not exist.
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	Update(ctx context.Context, id string, upd domain.Update) (*domain.Job, error)
	// FindAll returns matches newest first.
	FindAll(ctx context.Context, f Filter, limit int) ([]*domain.Job, error)
}

type jobRepo struct {
	store docstore.Store
	log   *logger.Logger
	now   func() time.Time
}

func NewJobRepo(store docstore.Store, baseLog *logger.Logger) JobRepo {
	return &jobRepo{
		store: store,
		log:   baseLog.With("repo", "JobRepo"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *jobRepo) Create(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: nil job", domain.ErrValidation)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	doc := encodeJob(job)
	if err := r.store.Set(ctx, Collection, job.JobID, doc); err != nil {
		return nil, storageErr("create", err)
	}
	// Return what a reader would see, not the caller's struct.
	stored, err := roundTrip(doc)
	if err != nil {
		return nil, storageErr("create", err)
	}
	return decodeJob(stored)
}

func (r *jobRepo) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	if id == "" {
		return nil, nil
	}
	doc, ok, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, storageErr("get", err)
	}
	if !ok {
		return nil, nil
	}
	job, err := decodeJob(doc)
	if err != nil {
		return nil, storageErr("decode", err)
	}
	return job, nil
}

func (r *jobRepo) Update(ctx context.Context, id string, upd domain.Update) (*domain.Job, error) {
	var decodeErr error
	doc, err := r.store.Mutate(ctx, Collection, id, func(cur docstore.Document) (docstore.Document, error) {
		job, err := decodeJob(cur)
		if err != nil {
			decodeErr = err
			return nil, err
		}
		if err := upd.Apply(job, r.now()); err != nil {
			return nil, err
		}
		return encodeJob(job), nil
	})
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	case decodeErr != nil:
		return nil, storageErr("decode", decodeErr)
	case err != nil:
		if isDomainErr(err) {
			return nil, err
		}
		return nil, storageErr("update", err)
	}
	job, err := decodeJob(doc)
	if err != nil {
		return nil, storageErr("decode", err)
	}
	return job, nil
}

func (r *jobRepo) FindAll(ctx context.Context, f Filter, limit int) ([]*domain.Job, error) {
	q := docstore.Query{OrderBy: "created_at", Desc: true, Limit: limit}
	if f.UserID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "user_id", Value: f.UserID})
	}
	if f.ProjectID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "project_id", Value: f.ProjectID})
	}
	if f.Status.Valid() {
		q.Filters = append(q.Filters, docstore.Filter{Field: "status", Value: f.Status.String()})
	}
	if f.JobType.Valid() {
		q.Filters = append(q.Filters, docstore.Filter{Field: "job_type", Value: f.JobType.String()})
	}
	docs, err := r.store.Query(ctx, Collection, q)
	if err != nil {
		return nil, storageErr("query", err)
	}
	out := make([]*domain.Job, 0, len(docs))
	for _, doc := range docs {
		job, err := decodeJob(doc)
		if err != nil {
			r.log.Warn("Skipping undecodable job document", "job_id", str(doc["job_id"]), "error", err)
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func isDomainErr(err error) bool {
	return errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrInvalidTransition)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: job %s: %v", domain.ErrStorageFailure, op, err)
}
