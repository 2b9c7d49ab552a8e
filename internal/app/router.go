package app

import (
	apphttp "github.com/yungbote/mediaforge-backend/internal/http"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *apphttp.Server {
	return apphttp.NewServer(cfg.Addr(), apphttp.RouterConfig{
		Log:             log,
		ServiceName:     serviceName,
		CORSOrigins:     cfg.CORSOrigins,
		AuthMiddleware:  middleware.Auth,
		HealthHandler:   handlers.Health,
		JobHandler:      handlers.Job,
		AssetHandler:    handlers.Asset,
		UploadHandler:   handlers.Upload,
		RealtimeHandler: handlers.Realtime,
		WebhookHandler:  handlers.Webhook,
	})
}
