package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/mediaforge-backend/internal/platform/docstore"
	"github.com/yungbote/mediaforge-backend/internal/platform/gcp"
	"github.com/yungbote/mediaforge-backend/internal/platform/identity"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
	"github.com/yungbote/mediaforge-backend/internal/platform/provider"
	"github.com/yungbote/mediaforge-backend/internal/realtime/bus"
)

type Clients struct {
	Store    docstore.Store
	Bucket   *gcp.AssetBucket
	Provider *provider.Client
	Catalog  *provider.Catalog
	Verifier identity.Verifier
	// Bus is nil unless REDIS_ADDR is set.
	Bus      bus.Bus

	closeStore func() error
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Document store
	if strings.TrimSpace(cfg.DocstoreDriver) == "" {
		log.Warn("DOCSTORE_DRIVER not set; jobs are kept in memory")
		out.Store = docstore.NewMemory()
	} else {
		store, err := docstore.Open(cfg.DocstoreDriver, cfg.DocstoreDSN, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init docstore: %w", err)
		}
		out.Store = store
		out.closeStore = store.Close
	}

	// Gcs
	bucket, err := resolveAssetBucket(ctx, log)
	if err != nil {
		out.close(log)
		return Clients{}, err
	}
	out.Bucket = bucket

	// Provider
	client, err := provider.NewClient(log, provider.Config{
		BaseURL:      cfg.ProviderBaseURL,
		APIToken:     cfg.ProviderAPIToken,
		PollInterval: cfg.ProviderPollInterval,
		MaxWait:      cfg.ProviderMaxWait,
	})
	if err != nil {
		out.close(log)
		return Clients{}, fmt.Errorf("init provider client: %w", err)
	}
	if cfg.ProviderAPIToken == "" {
		log.Warn("PROVIDER_API_TOKEN not set; provider calls will be unauthenticated")
	}
	out.Provider = client

	catalog, err := provider.LoadCatalog(cfg.ProviderCatalogPath)
	if err != nil {
		out.close(log)
		return Clients{}, fmt.Errorf("load provider catalog: %w", err)
	}
	out.Catalog = catalog

	// Identity
	verifier, err := identity.New(identity.Config{
		Mode:              cfg.AuthMode,
		FirebaseProjectID: cfg.FirebaseProjectID,
		FirebaseJWKSURL:   cfg.FirebaseJWKSURL,
		HMACSecret:        cfg.AuthHMACSecret,
		HMACIssuer:        cfg.AuthHMACIssuer,
	})
	if err != nil {
		out.close(log)
		return Clients{}, fmt.Errorf("init identity verifier: %w", err)
	}
	out.Verifier = verifier

	// Redis
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		b, err := bus.NewRedisBus(log, bus.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			out.close(log)
			return Clients{}, fmt.Errorf("init redis job bus: %w", err)
		}
		out.Bus = b
	}

	return out, nil
}

func (c Clients) close(log *logger.Logger) {
	if c.Bus != nil {
		if err := c.Bus.Close(); err != nil {
			log.Warn("Redis job bus close failed", "error", err)
		}
	}
	if c.Bucket != nil {
		if err := c.Bucket.Close(); err != nil {
			log.Warn("Asset bucket close failed", "error", err)
		}
	}
	if c.closeStore != nil {
		if err := c.closeStore(); err != nil {
			log.Warn("Docstore close failed", "error", err)
		}
	}
}
