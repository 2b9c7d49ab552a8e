package pipeline

import (
	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
)

// NewObjectPipeline generates a 3D asset from a text prompt. Splat and mesh
// formats are opaque to sniffing, so any non-empty output is accepted.
func NewObjectPipeline(deps Deps) (*MediaPipeline, error) {
	return newMediaPipeline(domain.JobTypeObject, deps, nil)
}
