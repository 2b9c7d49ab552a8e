package app

import (
	"github.com/yungbote/mediaforge-backend/internal/data/repos"
	"github.com/yungbote/mediaforge-backend/internal/platform/docstore"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

func wireRepos(store docstore.Store, log *logger.Logger) repos.Repos {
	log.Info("Wiring repos...")
	return repos.New(store, log)
}
