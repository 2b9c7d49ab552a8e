package app

import (
	"context"
	"fmt"

	"github.com/yungbote/mediaforge-backend/internal/data/repos"
	"github.com/yungbote/mediaforge-backend/internal/jobs/pipeline"
	"github.com/yungbote/mediaforge-backend/internal/jobs/runtime"
	"github.com/yungbote/mediaforge-backend/internal/jobs/worker"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
	"github.com/yungbote/mediaforge-backend/internal/realtime"
	"github.com/yungbote/mediaforge-backend/internal/services"
)

type Services struct {
	Jobs       services.JobService
	Processor  *services.JobProcessor
	Dispatcher *services.Dispatcher
	Assets     *services.AssetService
	Uploads    *services.UploadService
	Webhooks   *services.WebhookDispatcher
	Pool       *worker.Pool
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet repos.Repos, streams *realtime.Streams) (Services, error) {
	log.Info("Wiring services...")

	webhooks := services.NewWebhookDispatcher(log, services.WebhookConfig{
		Timeout: cfg.WebhookTimeout,
		Shards:  cfg.WebhookShards,
	})
	notifier := services.NewJobNotifier(streams, webhooks)
	jobService := services.NewJobService(log, reposet.Jobs, notifier)

	registry, err := wirePipelines(cfg, clients)
	if err != nil {
		_ = webhooks.Close(context.Background())
		return Services{}, err
	}
	processor := services.NewJobProcessor(log, registry, jobService)

	pool := worker.NewPool(log, worker.Config{
		Concurrency: cfg.WorkerConcurrency,
		QueueSize:   cfg.WorkerQueueSize,
	}, processor.Abort)

	return Services{
		Jobs:       jobService,
		Processor:  processor,
		Dispatcher: services.NewDispatcher(log, jobService, processor, pool),
		Assets:     services.NewAssetService(log, jobService, clients.Bucket, cfg.AssetURLExpiry),
		Uploads:    services.NewUploadService(log, clients.Bucket, cfg.UploadMaxBytes),
		Webhooks:   webhooks,
		Pool:       pool,
	}, nil
}

func wirePipelines(cfg Config, clients Clients) (*runtime.Registry, error) {
	deps := pipeline.Deps{
		Provider:  clients.Provider,
		Catalog:   clients.Catalog,
		Blobs:     clients.Bucket,
		URLExpiry: cfg.AssetURLExpiry,
	}
	object, err := pipeline.NewObjectPipeline(deps)
	if err != nil {
		return nil, fmt.Errorf("init object pipeline: %w", err)
	}
	video, err := pipeline.NewVideoPipeline(deps)
	if err != nil {
		return nil, fmt.Errorf("init video pipeline: %w", err)
	}

	registry := runtime.NewRegistry()
	for _, p := range []runtime.Pipeline{object, video} {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
