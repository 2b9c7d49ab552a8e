package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/mediaforge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/mediaforge-backend/internal/http/middleware"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler   *httpH.HealthHandler
	JobHandler      *httpH.JobHandler
	AssetHandler    *httpH.AssetHandler
	UploadHandler   *httpH.UploadHandler
	RealtimeHandler *httpH.RealtimeHandler
	WebhookHandler  *httpH.WebhookHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		// Jobs
		if cfg.JobHandler != nil {
			api.POST("/jobs", cfg.JobHandler.CreateJob)
			api.GET("/jobs", cfg.JobHandler.ListJobs)
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.GET("/projects/:id/jobs", cfg.JobHandler.ListProjectJobs)
			api.POST("/generate-3d-asset", cfg.JobHandler.Generate3DAsset)
		}

		// Assets
		if cfg.AssetHandler != nil {
			api.GET("/jobs/:id/asset-url", cfg.AssetHandler.GetAssetURL)
			api.GET("/jobs/:id/assets", cfg.AssetHandler.ListAssets)
			api.DELETE("/jobs/:id/assets", cfg.AssetHandler.DeleteAssets)
			api.GET("/assets/:id", cfg.AssetHandler.RedirectToAsset)
		}

		// Direct uploads
		if cfg.UploadHandler != nil {
			api.POST("/upload-to-gcs", cfg.UploadHandler.UploadFile)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/webhooks/:id/stream", cfg.RealtimeHandler.JobStream)
		}

		// Webhook receiver for smoke tests
		if cfg.WebhookHandler != nil {
			api.POST("/webhooks/test", cfg.WebhookHandler.TestReceiver)
		}
	}

	return r
}
