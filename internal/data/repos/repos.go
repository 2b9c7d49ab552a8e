package repos

import (
	"github.com/yungbote/mediaforge-backend/internal/data/repos/jobs"
	"github.com/yungbote/mediaforge-backend/internal/platform/docstore"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

type JobRepo = jobs.JobRepo
type JobFilter = jobs.Filter

type Repos struct {
	Jobs JobRepo
}

func New(store docstore.Store, log *logger.Logger) Repos {
	return Repos{
		Jobs: jobs.NewJobRepo(store, log),
	}
}
