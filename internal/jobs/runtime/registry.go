package runtime

import (
	"fmt"
	"sort"
	"sync"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
)

// Pipeline runs everything after the job is marked PROCESSING. Returning an
// error fails the job with that error's text.
type Pipeline interface {
	Type() domain.JobType
	Run(jc *Context) error
}

type Registry struct {
	mu        sync.RWMutex
	pipelines map[domain.JobType]Pipeline
}

func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[domain.JobType]Pipeline)}
}

func (r *Registry) Register(p Pipeline) error {
	if p == nil {
		return fmt.Errorf("nil pipeline")
	}
	t := p.Type()
	if !t.Valid() {
		return fmt.Errorf("pipeline Type() is invalid")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pipelines[t]; exists {
		return fmt.Errorf("pipeline already registered for job_type=%s", t)
	}
	r.pipelines[t] = p
	return nil
}

func (r *Registry) Get(t domain.JobType) (Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[t]
	return p, ok
}

func (r *Registry) Types() []domain.JobType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.JobType, 0, len(r.pipelines))
	for t := range r.pipelines {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
