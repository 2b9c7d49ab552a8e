package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/mediaforge-backend/internal/platform/gcp"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

func clearStorageEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ASSET_STORAGE_MODE", "ASSET_GCS_BUCKET_NAME", "STORAGE_EMULATOR_HOST", "ASSET_PUBLIC_BASE_URL"} {
		t.Setenv(k, "")
	}
}

func stubAssetBucket(t *testing.T, fn func(ctx context.Context, log *logger.Logger, cfg gcp.StorageConfig) (*gcp.AssetBucket, error)) {
	t.Helper()
	orig := newAssetBucket
	t.Cleanup(func() {
		newAssetBucket = orig
	})
	newAssetBucket = fn
}

func TestClassifyStorageProviderBootstrapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want StorageProviderBootstrapErrorCode
	}{
		{"invalid mode", &gcp.ConfigError{Code: gcp.ConfigErrorInvalidMode, Value: "s3"}, StorageProviderBootstrapErrorInvalidMode},
		{"missing bucket", &gcp.ConfigError{Code: gcp.ConfigErrorMissingBucket}, StorageProviderBootstrapErrorMissingBucket},
		{"missing emulator host", &gcp.ConfigError{Code: gcp.ConfigErrorMissingEmulatorHost}, StorageProviderBootstrapErrorMissingEmulatorHost},
		{"invalid url", &gcp.ConfigError{Code: gcp.ConfigErrorInvalidURL, Value: "fake-gcs:4443"}, StorageProviderBootstrapErrorInvalidURL},
		{"wrapped config error", errors.Join(errors.New("validate"), &gcp.ConfigError{Code: gcp.ConfigErrorMissingBucket}), StorageProviderBootstrapErrorMissingBucket},
		{"connect failed", errors.New("dial tcp: connection refused"), StorageProviderBootstrapErrorConnectFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyStorageProviderBootstrapError(gcp.StorageConfig{Mode: gcp.StorageModeGCS}, tc.err)

			var got *StorageProviderBootstrapError
			if !errors.As(err, &got) {
				t.Fatalf("expected StorageProviderBootstrapError, got=%T", err)
			}
			if got.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, got.Code)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("cause not preserved: %v", err)
			}
		})
	}
}

func TestResolveAssetBucketInvalidMode(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("ASSET_STORAGE_MODE", "s3")
	t.Setenv("ASSET_GCS_BUCKET_NAME", "assets")

	_, err := resolveAssetBucket(context.Background(), logger.Nop())
	if got := storageProviderBootstrapErrorCode(err); got != StorageProviderBootstrapErrorInvalidMode {
		t.Fatalf("code: want=%q got=%q (err=%v)", StorageProviderBootstrapErrorInvalidMode, got, err)
	}
}

func TestResolveAssetBucketMissingBucket(t *testing.T) {
	clearStorageEnv(t)

	_, err := resolveAssetBucket(context.Background(), logger.Nop())
	if got := storageProviderBootstrapErrorCode(err); got != StorageProviderBootstrapErrorMissingBucket {
		t.Fatalf("code: want=%q got=%q (err=%v)", StorageProviderBootstrapErrorMissingBucket, got, err)
	}
}

func TestResolveAssetBucketInvalidEmulatorHost(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("ASSET_STORAGE_MODE", "gcs_emulator")
	t.Setenv("ASSET_GCS_BUCKET_NAME", "assets")
	t.Setenv("STORAGE_EMULATOR_HOST", "not-a-url")

	_, err := resolveAssetBucket(context.Background(), logger.Nop())
	if got := storageProviderBootstrapErrorCode(err); got != StorageProviderBootstrapErrorInvalidURL {
		t.Fatalf("code: want=%q got=%q (err=%v)", StorageProviderBootstrapErrorInvalidURL, got, err)
	}
}

func TestResolveAssetBucketEmulatorMode(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("ASSET_GCS_BUCKET_NAME", "assets")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443/")

	var captured gcp.StorageConfig
	expected := &gcp.AssetBucket{}
	stubAssetBucket(t, func(_ context.Context, _ *logger.Logger, cfg gcp.StorageConfig) (*gcp.AssetBucket, error) {
		captured = cfg
		return expected, nil
	})

	got, err := resolveAssetBucket(context.Background(), logger.Nop())
	if err != nil {
		t.Fatalf("resolveAssetBucket: %v", err)
	}
	if got != expected {
		t.Fatalf("bucket: expected stub bucket instance")
	}
	if captured.Mode != gcp.StorageModeGCSEmulator {
		t.Fatalf("mode: want=%q got=%q", gcp.StorageModeGCSEmulator, captured.Mode)
	}
	if !captured.ImpliedEmulator {
		t.Fatalf("expected emulator mode to be implied by STORAGE_EMULATOR_HOST")
	}
	if captured.EmulatorHost != "http://fake-gcs:4443" {
		t.Fatalf("emulator host: want=%q got=%q", "http://fake-gcs:4443", captured.EmulatorHost)
	}
}

func TestResolveAssetBucketConnectFailed(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("ASSET_GCS_BUCKET_NAME", "assets")

	stubAssetBucket(t, func(context.Context, *logger.Logger, gcp.StorageConfig) (*gcp.AssetBucket, error) {
		return nil, errors.New("could not find default credentials")
	})

	_, err := resolveAssetBucket(context.Background(), logger.Nop())
	var got *StorageProviderBootstrapError
	if !errors.As(err, &got) {
		t.Fatalf("expected StorageProviderBootstrapError, got=%T", err)
	}
	if got.Code != StorageProviderBootstrapErrorConnectFailed {
		t.Fatalf("code: want=%q got=%q", StorageProviderBootstrapErrorConnectFailed, got.Code)
	}
	if got.Mode != string(gcp.StorageModeGCS) {
		t.Fatalf("mode: want=%q got=%q", gcp.StorageModeGCS, got.Mode)
	}
}
