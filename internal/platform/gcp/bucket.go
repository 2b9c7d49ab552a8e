package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

// StorageError reports a failed blob operation.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrObjectNotFound is wrapped by StorageError when the key does not exist.
var ErrObjectNotFound = storage.ErrObjectNotExist

type UploadedObject struct {
	Bucket      string
	Key         string
	Size        int64
	ContentType string
}

type AssetBucket struct {
	log           *logger.Logger
	client        *storage.Client
	bucket        string
	mode          StorageMode
	emulatorHost  string
	publicBaseURL string
	uploadTimeout time.Duration
}

func NewAssetBucket(ctx context.Context, log *logger.Logger, cfg StorageConfig) (*AssetBucket, error) {
	if err := ValidateStorageConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate asset storage config: %w", err)
	}
	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	b := &AssetBucket{
		log:           log.With("service", "AssetBucket"),
		client:        client,
		bucket:        cfg.Bucket,
		mode:          cfg.Mode,
		emulatorHost:  cfg.EmulatorHost,
		publicBaseURL: cfg.PublicBaseURL,
		uploadTimeout: 2 * time.Minute,
	}
	b.log.Info("Asset storage initialized",
		"mode", cfg.Mode,
		"mode_source", cfg.ModeSource(),
		"bucket", cfg.Bucket,
		"emulator_host", cfg.EmulatorHost,
	)
	return b, nil
}

func newStorageClient(ctx context.Context, cfg StorageConfig) (*storage.Client, error) {
	if cfg.IsEmulatorMode() {
		// The SDK reads the emulator endpoint from the environment.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	return storage.NewClient(ctx, opts...)
}

func (b *AssetBucket) Close() error {
	return b.client.Close()
}

func (b *AssetBucket) Upload(ctx context.Context, key string, r io.Reader, contentType string) (*UploadedObject, error) {
	key = cleanKey(key)
	if key == "" {
		return nil, &StorageError{Op: "upload", Key: key, Err: errors.New("empty key")}
	}
	ctx, cancel := context.WithTimeout(ctx, b.uploadTimeout)
	defer cancel()

	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return nil, &StorageError{Op: "upload", Key: key, Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &StorageError{Op: "upload", Key: key, Err: err}
	}
	b.log.Debug("Asset uploaded", "key", key, "bytes", n, "content_type", contentType)
	return &UploadedObject{Bucket: b.bucket, Key: key, Size: n, ContentType: contentType}, nil
}

// SignedURL returns a time-limited GET URL. The emulator does not verify
// signatures, so in emulator mode the plain media URL is returned.
func (b *AssetBucket) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	key = cleanKey(key)
	if key == "" {
		return "", &StorageError{Op: "sign", Key: key, Err: errors.New("empty key")}
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	if b.mode == StorageModeGCSEmulator {
		base := b.publicBaseURL
		if base == "" {
			base = b.emulatorHost
		}
		return emulatorMediaURL(base, b.bucket, key), nil
	}
	u, err := b.client.Bucket(b.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	})
	if err != nil {
		return "", &StorageError{Op: "sign", Key: key, Err: err}
	}
	return u, nil
}

func (b *AssetBucket) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := b.client.Bucket(b.bucket).Objects(ctx, &storage.Query{Prefix: cleanKey(prefix)})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, &StorageError{Op: "list", Key: prefix, Err: err}
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

// DeletePrefix removes every object under prefix and reports how many were
// deleted. Individual delete failures are logged and skipped.
func (b *AssetBucket) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if cleanKey(prefix) == "" {
		return 0, &StorageError{Op: "delete_prefix", Key: prefix, Err: errors.New("refusing to delete bucket root")}
	}
	keys, err := b.ListKeys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, k := range keys {
		dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := b.client.Bucket(b.bucket).Object(k).Delete(dctx)
		cancel()
		if err != nil {
			b.log.Warn("Asset delete failed", "key", k, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

func emulatorMediaURL(base, bucket, key string) string {
	return fmt.Sprintf(
		"%s/storage/v1/b/%s/o/%s?alt=media",
		strings.TrimRight(strings.TrimSpace(base), "/"),
		url.PathEscape(bucket),
		url.PathEscape(key),
	)
}

func cleanKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}
