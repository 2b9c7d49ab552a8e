package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/mediaforge-backend/internal/jobs/runtime"
	"github.com/yungbote/mediaforge-backend/internal/observability"
	"github.com/yungbote/mediaforge-backend/internal/platform/gcp"
	"github.com/yungbote/mediaforge-backend/internal/platform/provider"
)

const DefaultURLExpiry = 24 * time.Hour

// BlobStore is the part of the asset bucket the pipelines write through.
type BlobStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (*gcp.UploadedObject, error)
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// AssetKey is where a job's generated file lives in the bucket.
func AssetKey(jobID, filename string) string {
	return path.Join("assets", jobID, path.Base(filename))
}

type output struct {
	data        []byte
	contentType string
	artifact    *provider.Artifact
}

// finalize uploads the output, signs it and completes the job. Every media
// pipeline ends here.
func finalize(jc *runtime.Context, blobs BlobStore, expiry time.Duration, filename string, out output) error {
	ctx, span := observability.StartJobSpan(jc.Ctx, "pipeline.finalize", jc.JobID, jc.JobType.String())
	defer span.End()

	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	key := AssetKey(jc.JobID, filename)

	obj, err := blobs.Upload(ctx, key, bytes.NewReader(out.data), out.contentType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload")
		return fmt.Errorf("upload asset: %w", err)
	}
	if err := jc.Progress(90); err != nil {
		return err
	}

	signed, err := blobs.SignedURL(ctx, key, expiry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sign")
		return fmt.Errorf("sign asset url: %w", err)
	}

	size := int64(len(out.data))
	if obj != nil && obj.Size > 0 {
		size = obj.Size
	}
	result := map[string]any{
		"filename":     path.Base(filename),
		"storage_path": key,
		"signed_url":   signed,
		"asset_id":     jc.JobID,
		"content_type": out.contentType,
		"size":         size,
	}
	if a := out.artifact; a != nil {
		result["model"] = a.ModelID
		if a.PredictionID != "" {
			result["prediction_id"] = a.PredictionID
		}
		if len(a.Metrics) > 0 {
			result["metrics"] = a.Metrics
		}
	}

	jc.Log.Info("asset stored", "storage_path", key, "size", size, "content_type", out.contentType)
	return jc.Complete(result)
}
