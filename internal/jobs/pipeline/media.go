package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel/codes"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/jobs/runtime"
	"github.com/yungbote/mediaforge-backend/internal/observability"
	"github.com/yungbote/mediaforge-backend/internal/platform/provider"
)

// Deps are the collaborators shared by the media pipelines.
type Deps struct {
	Provider  provider.Invoker
	Catalog   *provider.Catalog
	Blobs     BlobStore
	URLExpiry time.Duration
}

func (d Deps) validate() error {
	switch {
	case d.Provider == nil:
		return fmt.Errorf("pipeline: provider is required")
	case d.Catalog == nil:
		return fmt.Errorf("pipeline: catalog is required")
	case d.Blobs == nil:
		return fmt.Errorf("pipeline: blob store is required")
	}
	return nil
}

// MediaPipeline runs a prompt through the catalog model for its job type and
// stores whatever comes back. check inspects the fetched bytes before upload.
type MediaPipeline struct {
	jobType domain.JobType
	deps    Deps
	route   provider.Route
	check   func(data []byte, mt *mimetype.MIME) error
}

func newMediaPipeline(t domain.JobType, deps Deps, check func([]byte, *mimetype.MIME) error) (*MediaPipeline, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	route, ok := deps.Catalog.Route(t.String())
	if !ok {
		return nil, fmt.Errorf("pipeline: no catalog route for job_type=%s", t)
	}
	return &MediaPipeline{jobType: t, deps: deps, route: route, check: check}, nil
}

func (p *MediaPipeline) Type() domain.JobType { return p.jobType }

func (p *MediaPipeline) Run(jc *runtime.Context) error {
	prompt, err := jc.RequireString("prompt")
	if err != nil {
		return err
	}
	if err := jc.Progress(10); err != nil {
		return err
	}

	art, err := p.invoke(jc, prompt)
	if err != nil {
		return err
	}
	if err := jc.Progress(60); err != nil {
		return err
	}

	out, err := p.fetch(jc, art)
	if err != nil {
		return err
	}
	if err := jc.Progress(80); err != nil {
		return err
	}

	return finalize(jc, p.deps.Blobs, p.deps.URLExpiry, p.route.Filename, out)
}

func (p *MediaPipeline) invoke(jc *runtime.Context, prompt string) (*provider.Artifact, error) {
	ctx, span := observability.StartJobSpan(jc.Ctx, "pipeline.invoke", jc.JobID, jc.JobType.String())
	defer span.End()

	input := p.route.Input(jc.Params())
	if p.route.PromptField != "prompt" {
		delete(input, "prompt")
	}
	input[p.route.PromptField] = prompt

	jc.Log.Info("invoking model", "model", p.route.Model)
	art, err := p.deps.Provider.Invoke(ctx, p.route.Model, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invoke")
		return nil, fmt.Errorf("generate %s: %w", p.jobType, err)
	}
	return art, nil
}

func (p *MediaPipeline) fetch(jc *runtime.Context, art *provider.Artifact) (output, error) {
	if art == nil {
		return output{}, fmt.Errorf("generate %s: provider returned no output", p.jobType)
	}
	data, headerType := art.Data, art.ContentType
	if len(data) == 0 && art.OutputURL != "" {
		ctx, span := observability.StartJobSpan(jc.Ctx, "pipeline.download", jc.JobID, jc.JobType.String())
		var err error
		data, headerType, err = p.deps.Provider.Download(ctx, art.OutputURL)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "download")
		}
		span.End()
		if err != nil {
			return output{}, fmt.Errorf("download %s output: %w", p.jobType, err)
		}
	}
	if len(data) == 0 {
		return output{}, fmt.Errorf("generate %s: provider returned empty output", p.jobType)
	}

	mt := mimetype.Detect(data)
	if p.check != nil {
		if err := p.check(data, mt); err != nil {
			return output{}, err
		}
	}
	return output{
		data:        data,
		contentType: contentTypeFor(mt, headerType, p.route.ContentType),
		artifact:    art,
	}, nil
}

// contentTypeFor prefers a specific sniffed type, then the download header,
// then the catalog default.
func contentTypeFor(mt *mimetype.MIME, header, fallback string) string {
	if mt != nil && !mt.Is("application/octet-stream") && !isText(mt) {
		return mt.String()
	}
	header = strings.TrimSpace(header)
	if header != "" && header != "application/octet-stream" && !strings.HasPrefix(header, "text/") {
		return header
	}
	if fallback != "" {
		return fallback
	}
	return "application/octet-stream"
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
