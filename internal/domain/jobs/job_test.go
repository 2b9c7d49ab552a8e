package jobs

import (
	"errors"
	"testing"
	"time"
)

func newQueuedJob() Job {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return Job{
		JobID:      "job-1",
		UserID:     "u1",
		JobType:    JobTypeVideo,
		Status:     StatusQueued,
		CreatedAt:  now,
		ModifiedAt: now,
		Parameters: map[string]any{"prompt": "a cat"},
		Version:    1,
	}
}

func TestParseJobType(t *testing.T) {
	cases := map[string]JobType{
		"3d":     JobTypeObject,
		"object": JobTypeObject,
		"VIDEO":  JobTypeVideo,
		" audio": JobTypeAudio,
		"image":  JobTypeImage,
	}
	for raw, want := range cases {
		got, err := ParseJobType(raw)
		if err != nil {
			t.Fatalf("ParseJobType(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseJobType(%q): want=%v got=%v", raw, want, got)
		}
	}
	if _, err := ParseJobType("hologram"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if JobTypeObject.String() != "3d" {
		t.Fatalf("object wire name: got=%q", JobTypeObject.String())
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusQueued, StatusProcessing, true},
		{StatusQueued, StatusFailed, true},
		{StatusQueued, StatusCompleted, false},
		{StatusProcessing, StatusProcessing, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusQueued, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: want=%v got=%v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestUpdateApplyIsSparse(t *testing.T) {
	j := newQueuedJob()
	start := j.CreatedAt.Add(time.Second)
	if err := (Update{Status: StatusPtr(StatusProcessing), StartedAt: Time(start), Progress: Float(0)}).Apply(&j, start); err != nil {
		t.Fatalf("processing: %v", err)
	}
	if err := (Update{Progress: Float(60), Result: map[string]any{"partial": true}}).Apply(&j, start); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if err := (Update{Progress: Float(80)}).Apply(&j, start.Add(time.Second)); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if j.Result["partial"] != true {
		t.Fatalf("progress-only update cleared result: %v", j.Result)
	}
	if j.Parameters["prompt"] != "a cat" {
		t.Fatalf("parameters changed: %v", j.Parameters)
	}
	if j.Version != 4 {
		t.Fatalf("version: want=4 got=%d", j.Version)
	}
	if !j.ModifiedAt.Equal(start.Add(time.Second)) {
		t.Fatalf("modified_at not refreshed: %v", j.ModifiedAt)
	}
}

func TestUpdateApplyEnforcesTerminalInvariants(t *testing.T) {
	j := newQueuedJob()
	now := j.CreatedAt
	_ = (Update{Status: StatusPtr(StatusProcessing), StartedAt: Time(now)}).Apply(&j, now)

	before := j
	err := (Update{Status: StatusPtr(StatusCompleted), Progress: Float(100)}).Apply(&j, now)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completed without result: want ErrInvalidTransition got %v", err)
	}
	if j.Version != before.Version || j.Status != before.Status {
		t.Fatalf("job mutated on rejected update")
	}

	err = (Update{Status: StatusPtr(StatusFailed)}).Apply(&j, now)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("failed without error: want ErrInvalidTransition got %v", err)
	}

	if err := (Update{Status: StatusPtr(StatusFailed), Error: String("boom"), CompletedAt: Time(now)}).Apply(&j, now); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := (Update{Progress: Float(50)}).Apply(&j, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("update after terminal: want ErrInvalidTransition got %v", err)
	}
	if err := (Update{Status: StatusPtr(StatusProcessing)}).Apply(&j, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("leave terminal: want ErrInvalidTransition got %v", err)
	}
}

func TestUpdateApplyRejectsBadProgress(t *testing.T) {
	j := newQueuedJob()
	if err := (Update{Progress: Float(101)}).Apply(&j, j.CreatedAt); !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation got %v", err)
	}
}

func TestValidateTimestamps(t *testing.T) {
	j := newQueuedJob()
	j.Status = StatusFailed
	j.Error = "x"
	started := j.CreatedAt.Add(time.Minute)
	completed := j.CreatedAt
	j.StartedAt = &started
	j.CompletedAt = &completed
	if err := j.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation got %v", err)
	}
}
