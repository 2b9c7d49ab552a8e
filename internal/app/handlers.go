package app

import (
	httpH "github.com/yungbote/mediaforge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/mediaforge-backend/internal/http/middleware"
	"github.com/yungbote/mediaforge-backend/internal/platform/identity"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
	"github.com/yungbote/mediaforge-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Job      *httpH.JobHandler
	Asset    *httpH.AssetHandler
	Upload   *httpH.UploadHandler
	Realtime *httpH.RealtimeHandler
	Webhook  *httpH.WebhookHandler
}

func wireMiddleware(log *logger.Logger, verifier identity.Verifier) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, verifier),
	}
}

func wireHandlers(log *logger.Logger, services Services, streams *realtime.Streams) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(),
		Job:      httpH.NewJobHandler(log, services.Jobs, services.Dispatcher),
		Asset:    httpH.NewAssetHandler(services.Assets),
		Upload:   httpH.NewUploadHandler(services.Uploads),
		Realtime: httpH.NewRealtimeHandler(log, services.Jobs, streams),
		Webhook:  httpH.NewWebhookHandler(log),
	}
}
