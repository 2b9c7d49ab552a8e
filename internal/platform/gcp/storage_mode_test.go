package gcp

import (
	"errors"
	"testing"
)

func TestResolveStorageConfigFromEnvDefaultGCS(t *testing.T) {
	t.Setenv("ASSET_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")
	t.Setenv("ASSET_PUBLIC_BASE_URL", "")
	t.Setenv("ASSET_GCS_BUCKET_NAME", "assets")

	cfg, err := ResolveStorageConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveStorageConfigFromEnv: %v", err)
	}
	if cfg.Mode != StorageModeGCS {
		t.Fatalf("mode: want=%q got=%q", StorageModeGCS, cfg.Mode)
	}
	if cfg.ModeSource() != "explicit_or_default" {
		t.Fatalf("mode source: got=%q", cfg.ModeSource())
	}
}

func TestResolveStorageConfigFromEnvImpliedEmulator(t *testing.T) {
	t.Setenv("ASSET_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443/")
	t.Setenv("ASSET_PUBLIC_BASE_URL", "")
	t.Setenv("ASSET_GCS_BUCKET_NAME", "assets")

	cfg, err := ResolveStorageConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveStorageConfigFromEnv: %v", err)
	}
	if !cfg.IsEmulatorMode() || !cfg.ImpliedEmulator {
		t.Fatalf("want implied emulator mode, got %+v", cfg)
	}
	if cfg.EmulatorHost != "http://fake-gcs:4443" {
		t.Fatalf("emulator host: got=%q", cfg.EmulatorHost)
	}
}

func TestResolveStorageConfigFromEnvErrors(t *testing.T) {
	cases := []struct {
		name     string
		mode     string
		emulator string
		bucket   string
		want     ConfigErrorCode
	}{
		{"invalid mode", "s3", "", "assets", ConfigErrorInvalidMode},
		{"missing bucket", "gcs", "", "", ConfigErrorMissingBucket},
		{"emulator without host", "gcs_emulator", "", "assets", ConfigErrorMissingEmulatorHost},
		{"emulator bad host", "gcs_emulator", "fake-gcs", "assets", ConfigErrorInvalidURL},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ASSET_STORAGE_MODE", tc.mode)
			t.Setenv("STORAGE_EMULATOR_HOST", tc.emulator)
			t.Setenv("ASSET_PUBLIC_BASE_URL", "")
			t.Setenv("ASSET_GCS_BUCKET_NAME", tc.bucket)

			_, err := ResolveStorageConfigFromEnv()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("want *ConfigError got %v", err)
			}
			if cfgErr.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, cfgErr.Code)
			}
		})
	}
}

func TestEmulatorMediaURLEscapesKey(t *testing.T) {
	got := emulatorMediaURL("http://localhost:4443/", "assets", "assets/job 1/video.mp4")
	want := "http://localhost:4443/storage/v1/b/assets/o/assets%2Fjob%201%2Fvideo.mp4?alt=media"
	if got != want {
		t.Fatalf("emulatorMediaURL:\nwant=%s\n got=%s", want, got)
	}
}

func TestStorageErrorUnwraps(t *testing.T) {
	err := error(&StorageError{Op: "sign", Key: "k", Err: ErrObjectNotFound})
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("StorageError should unwrap to the cause")
	}
}
