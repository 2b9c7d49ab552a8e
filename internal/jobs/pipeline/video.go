package pipeline

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
)

// NewVideoPipeline generates a clip from a text prompt. A textual body in
// place of the clip is an upstream error page and fails the job.
func NewVideoPipeline(deps Deps) (*MediaPipeline, error) {
	return newMediaPipeline(domain.JobTypeVideo, deps, func(data []byte, mt *mimetype.MIME) error {
		if isText(mt) {
			return fmt.Errorf("generate video: output is %s, not a video", mt.String())
		}
		return nil
	})
}
