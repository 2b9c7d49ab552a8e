package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mediaforge-backend/internal/data/repos"
	apphttp "github.com/yungbote/mediaforge-backend/internal/http"
	"github.com/yungbote/mediaforge-backend/internal/observability"
	"github.com/yungbote/mediaforge-backend/internal/platform/envutil"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
	"github.com/yungbote/mediaforge-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Repos    repos.Repos
	Services Services
	Streams  *realtime.Streams
	Server   *apphttp.Server

	shutdownOtel func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig()
	if isProduction(cfg.Env) {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfigFromEnv(serviceName, cfg.Env, cfg.Version))

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = shutdownOtel(ctx)
		log.Sync()
		return nil, err
	}

	streams := realtime.NewStreams(log, realtime.Options{Heartbeat: cfg.SSEHeartbeat})
	reposet := wireRepos(clients.Store, log)

	serviceset, err := wireServices(log, cfg, clients, reposet, streams)
	if err != nil {
		clients.close(log)
		_ = shutdownOtel(ctx)
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset, streams)
	middleware := wireMiddleware(log, clients.Verifier)
	server := wireServer(log, cfg, handlerset, middleware)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Streams:      streams,
		Server:       server,
		shutdownOtel: shutdownOtel,
	}, nil
}

// Start brings up the background machinery: the relay forwarder, the
// stream janitor and the worker pool.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Clients.Bus != nil {
		if err := a.Streams.UseRelay(ctx, a.Clients.Bus); err != nil {
			cancel()
			a.cancel = nil
			return fmt.Errorf("start job stream relay: %w", err)
		}
		a.Log.Info("Job streams relayed through redis", "channel", a.Cfg.RedisChannel)
	}
	go a.Streams.RunJanitor(ctx, time.Minute)
	a.Services.Pool.Start(ctx)
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "addr", a.Cfg.Addr())
	return a.Server.Run()
}

// Shutdown stops accepting requests, lets queued jobs and webhooks drain
// within ctx, then releases clients.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if a.Services.Pool != nil {
		if err := a.Services.Pool.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Services.Webhooks != nil {
		if err := a.Services.Webhooks.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("webhook drain: %w", err))
		}
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.close(a.Log)
	if a.shutdownOtel != nil {
		if err := a.shutdownOtel(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		a.Log.Error("Shutdown finished with errors", "error", err)
	} else {
		a.Log.Info("Shutdown complete")
	}
	a.Log.Sync()
	return err
}

func isProduction(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "prod", "production":
		return true
	}
	return false
}
