package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/jobs/pipeline"
	"github.com/yungbote/mediaforge-backend/internal/jobs/runtime"
	"github.com/yungbote/mediaforge-backend/internal/jobs/worker"
	"github.com/yungbote/mediaforge-backend/internal/platform/provider"
)

var fakeMP4 = append([]byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom"), make([]byte, 64)...)

type dispatchEnv struct {
	*testEnv
	inv        *fakeInvoker
	bucket     *fakeBucket
	processor  *JobProcessor
	pool       *worker.Pool
	dispatcher *Dispatcher
}

func newDispatchEnv(t *testing.T, extra ...runtime.Pipeline) *dispatchEnv {
	t.Helper()
	env := newTestEnv(t)
	inv := &fakeInvoker{
		artifact: &provider.Artifact{PredictionID: "pred-1", OutputURL: "https://cdn.example/out.mp4"},
		body:     fakeMP4,
	}
	bucket := newFakeBucket()
	cat, err := provider.LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	deps := pipeline.Deps{Provider: inv, Catalog: cat, Blobs: bucket}

	reg := runtime.NewRegistry()
	video, err := pipeline.NewVideoPipeline(deps)
	if err != nil {
		t.Fatalf("NewVideoPipeline: %v", err)
	}
	object, err := pipeline.NewObjectPipeline(deps)
	if err != nil {
		t.Fatalf("NewObjectPipeline: %v", err)
	}
	for _, p := range append([]runtime.Pipeline{video, object}, extra...) {
		if err := reg.Register(p); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	proc := NewJobProcessor(env.log, reg, env.jobs)
	pool := worker.NewPool(env.log, worker.Config{Concurrency: 2, QueueSize: 16}, proc.Abort)
	pool.Start(context.Background())
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	return &dispatchEnv{
		testEnv:    env,
		inv:        inv,
		bucket:     bucket,
		processor:  proc,
		pool:       pool,
		dispatcher: NewDispatcher(env.log, env.jobs, proc, pool),
	}
}

func TestDispatchVideoHappyPath(t *testing.T) {
	env := newDispatchEnv(t)
	reqCtx, cancel := context.WithCancel(context.Background())
	job, err := env.dispatcher.Dispatch(reqCtx, CreateJobInput{
		JobType:    domain.JobTypeVideo,
		UserID:     "alice",
		Parameters: map[string]any{"prompt": "a lighthouse at dusk"},
	})
	// The request finishing must not cancel processing.
	cancel()
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if job.Status != domain.StatusQueued {
		t.Fatalf("Dispatch should return the queued job, got=%s", job.Status)
	}

	done := waitForTerminal(t, env.jobs, job.JobID)
	if done.Status != domain.StatusCompleted {
		t.Fatalf("want completed, got=%s error=%q", done.Status, done.Error)
	}
	if done.Progress != 100 || done.StartedAt == nil || done.CompletedAt == nil {
		t.Fatalf("completed job fields: %+v", done)
	}
	url, _ := done.Result["signed_url"].(string)
	if !strings.Contains(url, "assets/"+job.JobID+"/video.mp4") {
		t.Fatalf("signed_url: got=%q", url)
	}
	if done.Result["asset_id"] != job.JobID || done.Result["model"] != "lightricks/ltx-video" {
		t.Fatalf("result metadata: %v", done.Result)
	}
	if _, ok := env.bucket.objects["assets/"+job.JobID+"/video.mp4"]; !ok {
		t.Fatalf("asset was not uploaded")
	}
}

func TestDispatchObjectMissingPromptFails(t *testing.T) {
	env := newDispatchEnv(t)
	job, err := env.dispatcher.Dispatch(context.Background(), CreateJobInput{
		JobType:    domain.JobTypeObject,
		UserID:     "alice",
		Parameters: map[string]any{"style": "lowpoly"},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	done := waitForTerminal(t, env.jobs, job.JobID)
	if done.Status != domain.StatusFailed || !strings.Contains(done.Error, "prompt") {
		t.Fatalf("want FAILED mentioning prompt, got status=%s error=%q", done.Status, done.Error)
	}
	if done.CompletedAt == nil {
		t.Fatalf("failed job needs completed_at")
	}
	if env.inv.calls != 0 {
		t.Fatalf("provider should not be called")
	}
}

func TestDispatchProviderFailure(t *testing.T) {
	env := newDispatchEnv(t)
	env.inv.err = &provider.Error{ModelID: "lightricks/ltx-video", StatusCode: 422, Message: "invalid input"}
	job, err := env.dispatcher.Dispatch(context.Background(), CreateJobInput{
		JobType: domain.JobTypeVideo, UserID: "alice", Parameters: map[string]any{"prompt": "x"},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	done := waitForTerminal(t, env.jobs, job.JobID)
	if done.Status != domain.StatusFailed || !strings.Contains(done.Error, "invalid input") {
		t.Fatalf("want provider error on job, got status=%s error=%q", done.Status, done.Error)
	}
}

func TestDispatchUnsupportedType(t *testing.T) {
	env := newDispatchEnv(t)
	_, err := env.dispatcher.Dispatch(context.Background(), CreateJobInput{JobType: domain.JobTypeAudio, UserID: "alice"})
	if !errors.Is(err, domain.ErrUnsupportedJobType) {
		t.Fatalf("want ErrUnsupportedJobType, got=%v", err)
	}
	jobs, err := env.jobs.GetUserJobs(context.Background(), "alice", 0)
	if err != nil || len(jobs) != 0 {
		t.Fatalf("no job should be created: got=%d err=%v", len(jobs), err)
	}
}

func TestProcessUnsupportedTypeDoesNotMutate(t *testing.T) {
	env := newDispatchEnv(t)
	job := env.create(t, CreateJobInput{JobType: domain.JobTypeImage})
	err := env.processor.Process(context.Background(), domain.JobTypeImage, job.JobID, nil)
	if !errors.Is(err, domain.ErrUnsupportedJobType) {
		t.Fatalf("want ErrUnsupportedJobType, got=%v", err)
	}
	got, _ := env.jobs.GetJobByID(context.Background(), job.JobID)
	if got.Status != domain.StatusQueued || got.Version != job.Version {
		t.Fatalf("job was mutated: %+v", got)
	}
}

type rejectingSubmitter struct{}

func (rejectingSubmitter) Submit(worker.Task) error { return worker.ErrQueueFull }

func TestDispatchQueueFullFailsJob(t *testing.T) {
	env := newDispatchEnv(t)
	d := NewDispatcher(env.log, env.jobs, env.processor, rejectingSubmitter{})
	_, err := d.Dispatch(context.Background(), CreateJobInput{JobType: domain.JobTypeVideo, UserID: "alice", Parameters: map[string]any{"prompt": "x"}})
	if !errors.Is(err, ErrDispatchUnavailable) {
		t.Fatalf("want ErrDispatchUnavailable, got=%v", err)
	}
	jobs, _ := env.jobs.GetUserJobs(context.Background(), "alice", 0)
	if len(jobs) != 1 || jobs[0].Status != domain.StatusFailed || !strings.Contains(jobs[0].Error, "queue is full") {
		t.Fatalf("undispatched job should be FAILED: %+v", jobs)
	}
}

type panickingPipeline struct{}

func (panickingPipeline) Type() domain.JobType { return domain.JobTypeImage }
func (panickingPipeline) Run(jc *runtime.Context) error {
	_ = jc.Progress(5)
	panic("pipeline bug")
}

func TestPanickingPipelineFailsJob(t *testing.T) {
	env := newDispatchEnv(t, panickingPipeline{})
	job, err := env.dispatcher.Dispatch(context.Background(), CreateJobInput{JobType: domain.JobTypeImage, UserID: "alice"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	done := waitForTerminal(t, env.jobs, job.JobID)
	if done.Status != domain.StatusFailed || !strings.Contains(done.Error, "pipeline bug") {
		t.Fatalf("want FAILED after panic, got status=%s error=%q", done.Status, done.Error)
	}

	// The pool keeps working after a panic.
	next, err := env.dispatcher.Dispatch(context.Background(), CreateJobInput{JobType: domain.JobTypeVideo, UserID: "alice", Parameters: map[string]any{"prompt": "y"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := waitForTerminal(t, env.jobs, next.JobID); got.Status != domain.StatusCompleted {
		t.Fatalf("want completed, got=%s", got.Status)
	}
}

type silentPipeline struct{}

func (silentPipeline) Type() domain.JobType       { return domain.JobTypeAudio }
func (silentPipeline) Run(*runtime.Context) error { return nil }

func TestPipelineWithoutOutcomeFails(t *testing.T) {
	env := newDispatchEnv(t, silentPipeline{})
	job := env.create(t, CreateJobInput{JobType: domain.JobTypeAudio})
	if err := env.processor.Process(context.Background(), domain.JobTypeAudio, job.JobID, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	got, _ := env.jobs.GetJobByID(context.Background(), job.JobID)
	if got.Status != domain.StatusFailed || got.Error != errNoOutcome.Error() {
		t.Fatalf("want FAILED with %q, got status=%s error=%q", errNoOutcome, got.Status, got.Error)
	}
}

func TestAbortLeavesFinishedJobs(t *testing.T) {
	env := newDispatchEnv(t)
	job, err := env.dispatcher.Dispatch(context.Background(), CreateJobInput{JobType: domain.JobTypeVideo, UserID: "alice", Parameters: map[string]any{"prompt": "z"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	done := waitForTerminal(t, env.jobs, job.JobID)
	env.processor.Abort(context.Background(), job.JobID, errors.New("late"))
	got, _ := env.jobs.GetJobByID(context.Background(), job.JobID)
	if got.Status != done.Status || got.Error != "" {
		t.Fatalf("finished job changed: %+v", got)
	}
}
