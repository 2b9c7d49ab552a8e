package services

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/mediaforge-backend/internal/data/repos"
	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/platform/docstore"
	"github.com/yungbote/mediaforge-backend/internal/platform/gcp"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
	"github.com/yungbote/mediaforge-backend/internal/platform/provider"
	"github.com/yungbote/mediaforge-backend/internal/realtime"
)

type testEnv struct {
	log      *logger.Logger
	repo     repos.JobRepo
	streams  *realtime.Streams
	webhooks *WebhookDispatcher
	jobs     JobService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Nop()
	repo := repos.New(docstore.NewMemory(), log).Jobs
	streams := realtime.NewStreams(log, realtime.Options{Heartbeat: time.Second})
	webhooks := NewWebhookDispatcher(log, WebhookConfig{Timeout: 2 * time.Second})
	t.Cleanup(func() { _ = webhooks.Close(context.Background()) })
	return &testEnv{
		log:      log,
		repo:     repo,
		streams:  streams,
		webhooks: webhooks,
		jobs:     NewJobService(log, repo, NewJobNotifier(streams, webhooks)),
	}
}

func (e *testEnv) create(t *testing.T, in CreateJobInput) *domain.Job {
	t.Helper()
	if in.UserID == "" {
		in.UserID = "user-1"
	}
	if in.JobType == domain.JobTypeUnknown {
		in.JobType = domain.JobTypeVideo
	}
	job, err := e.jobs.CreateJob(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

// waitForTerminal polls until the job reaches a terminal state.
func waitForTerminal(t *testing.T, jobs JobService, jobID string) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := jobs.GetJobByID(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJobByID: %v", err)
		}
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return nil
}

type fakeInvoker struct {
	mu       sync.Mutex
	artifact *provider.Artifact
	err      error
	body     []byte
	calls    int
}

func (f *fakeInvoker) Invoke(_ context.Context, modelID string, _ map[string]any) (*provider.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	a := *f.artifact
	a.ModelID = modelID
	return &a, nil
}

func (f *fakeInvoker) Download(_ context.Context, _ string) ([]byte, string, error) {
	return f.body, "video/mp4", nil
}

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	signErr error
}

func newFakeBucket() *fakeBucket { return &fakeBucket{objects: map[string][]byte{}} }

func (b *fakeBucket) Upload(_ context.Context, key string, r io.Reader, contentType string) (*gcp.UploadedObject, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.objects[key] = data
	b.mu.Unlock()
	return &gcp.UploadedObject{Bucket: "test", Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (b *fakeBucket) SignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	if b.signErr != nil {
		return "", b.signErr
	}
	return "https://signed.example/" + key + "?expires=" + expiry.String(), nil
}

func (b *fakeBucket) ListKeys(_ context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []string{}
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (b *fakeBucket) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, _ := b.ListKeys(ctx, prefix)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.objects, k)
	}
	return len(keys), nil
}
