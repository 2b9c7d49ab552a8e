package app

import (
	"time"

	"github.com/yungbote/mediaforge-backend/internal/platform/envutil"
)

const serviceName = "mediaforge-backend"

type Config struct {
	Port        string
	Env         string
	Version     string
	CORSOrigins []string

	DocstoreDriver string
	DocstoreDSN    string

	AssetURLExpiry time.Duration
	UploadMaxBytes int64

	WorkerConcurrency int
	WorkerQueueSize   int

	ProviderBaseURL      string
	ProviderAPIToken     string
	ProviderPollInterval time.Duration
	ProviderMaxWait      time.Duration
	ProviderCatalogPath  string

	WebhookTimeout time.Duration
	WebhookShards  int

	SSEHeartbeat time.Duration

	AuthMode          string
	FirebaseProjectID string
	FirebaseJWKSURL   string
	AuthHMACSecret    string
	AuthHMACIssuer    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string
}

func LoadConfig() Config {
	return Config{
		Port:        envutil.String("PORT", "8080"),
		Env:         envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),
		CORSOrigins: envutil.CSV("CORS_ALLOWED_ORIGINS", nil),

		// An empty driver keeps jobs in process memory.
		DocstoreDriver: envutil.String("DOCSTORE_DRIVER", ""),
		DocstoreDSN:    envutil.String("DOCSTORE_DSN", ""),

		AssetURLExpiry: envutil.Duration("ASSET_URL_EXPIRY", 24*time.Hour),
		UploadMaxBytes: int64(envutil.Int("UPLOAD_MAX_BYTES", 100<<20)),

		WorkerConcurrency: envutil.Int("WORKER_CONCURRENCY", 4),
		WorkerQueueSize:   envutil.Int("WORKER_QUEUE_SIZE", 256),

		ProviderBaseURL:      envutil.String("PROVIDER_BASE_URL", "https://api.replicate.com/v1"),
		ProviderAPIToken:     envutil.String("PROVIDER_API_TOKEN", ""),
		ProviderPollInterval: envutil.Duration("PROVIDER_POLL_INTERVAL", 2*time.Second),
		ProviderMaxWait:      envutil.Duration("PROVIDER_MAX_WAIT", 10*time.Minute),
		ProviderCatalogPath:  envutil.String("PROVIDER_CATALOG_PATH", ""),

		WebhookTimeout: envutil.Duration("WEBHOOK_TIMEOUT", 10*time.Second),
		WebhookShards:  envutil.Int("WEBHOOK_SHARDS", 4),

		SSEHeartbeat: envutil.Duration("SSE_HEARTBEAT", 30*time.Second),

		AuthMode:          envutil.String("AUTH_MODE", "firebase"),
		FirebaseProjectID: envutil.String("FIREBASE_PROJECT_ID", ""),
		FirebaseJWKSURL:   envutil.String("FIREBASE_JWKS_URL", ""),
		AuthHMACSecret:    envutil.String("AUTH_HMAC_SECRET", ""),
		AuthHMACIssuer:    envutil.String("AUTH_HMAC_ISSUER", serviceName),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),
		RedisChannel:  envutil.String("REDIS_CHANNEL", "job-streams"),
	}
}

func (c Config) Addr() string {
	return ":" + c.Port
}
