package jobs

import (
	"fmt"
	"strings"
	"time"
)

// JobType selects the processing pipeline for a job.
type JobType int

const (
	JobTypeUnknown JobType = iota
	JobTypeObject
	JobTypeVideo
	JobTypeAudio
	JobTypeImage
)

var jobTypeNames = map[JobType]string{
	JobTypeObject: "3d",
	JobTypeVideo:  "video",
	JobTypeAudio:  "audio",
	JobTypeImage:  "image",
}

func (t JobType) String() string {
	if s, ok := jobTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

func (t JobType) Valid() bool {
	_, ok := jobTypeNames[t]
	return ok
}

// ParseJobType accepts the canonical wire form ("3d", "video", ...) and the
// alias "object" for 3d.
func ParseJobType(raw string) (JobType, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "object" {
		return JobTypeObject, nil
	}
	for t, name := range jobTypeNames {
		if name == s {
			return t, nil
		}
	}
	return JobTypeUnknown, fmt.Errorf("%w: unknown job_type %q", ErrValidation, raw)
}

func (t JobType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid job type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *JobType) UnmarshalText(b []byte) error {
	parsed, err := ParseJobType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Status is the lifecycle state of a job.
type Status int

const (
	StatusUnknown Status = iota
	StatusQueued
	StatusProcessing
	StatusCompleted
	StatusFailed
)

var statusNames = map[Status]string{
	StatusQueued:     "queued",
	StatusProcessing: "processing",
	StatusCompleted:  "completed",
	StatusFailed:     "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a job may move from s to next. Staying in the
// same non-terminal state is allowed (progress updates).
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusQueued || next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusProcessing || next.IsTerminal()
	default:
		return false
	}
}

func ParseStatus(raw string) (Status, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for st, name := range statusNames {
		if name == s {
			return st, nil
		}
	}
	return StatusUnknown, fmt.Errorf("%w: unknown status %q", ErrValidation, raw)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Job is the canonical job record.
type Job struct {
	JobID       string         `json:"job_id"`
	UserID      string         `json:"user_id"`
	ProjectID   string         `json:"project_id,omitempty"`
	JobType     JobType        `json:"job_type"`
	Status      Status         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	ModifiedAt  time.Time      `json:"modified_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Progress    float64        `json:"progress"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Parameters  map[string]any `json:"parameters"`
	WebhookURL  string         `json:"webhook_url,omitempty"`
	Version     int64          `json:"version"`
}

// Update is a sparse patch: nil fields are left untouched.
type Update struct {
	Status      *Status
	Progress    *float64
	Result      map[string]any
	Error       *string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Apply merges u into j in place, stamps ModifiedAt and bumps Version.
// It enforces the lifecycle rules and leaves j untouched on error.
func (u Update) Apply(j *Job, now time.Time) error {
	next := *j
	if u.Status != nil {
		if !u.Status.Valid() {
			return fmt.Errorf("%w: invalid status", ErrValidation)
		}
		if !j.Status.CanTransition(*u.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, *u.Status)
		}
		next.Status = *u.Status
	} else if j.Status.IsTerminal() {
		return fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, j.JobID, j.Status)
	}
	if u.Progress != nil {
		if *u.Progress < 0 || *u.Progress > 100 {
			return fmt.Errorf("%w: progress %.2f out of range", ErrValidation, *u.Progress)
		}
		next.Progress = *u.Progress
	}
	if u.Result != nil {
		next.Result = u.Result
	}
	if u.Error != nil {
		next.Error = *u.Error
	}
	if u.StartedAt != nil {
		t := *u.StartedAt
		next.StartedAt = &t
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		next.CompletedAt = &t
	}
	if now.Before(next.CreatedAt) {
		now = next.CreatedAt
	}
	next.ModifiedAt = now
	next.Version = j.Version + 1

	if err := next.Validate(); err != nil {
		return err
	}
	*j = next
	return nil
}

// Validate checks the record-level invariants.
func (j *Job) Validate() error {
	switch {
	case strings.TrimSpace(j.JobID) == "":
		return fmt.Errorf("%w: missing job_id", ErrValidation)
	case strings.TrimSpace(j.UserID) == "":
		return fmt.Errorf("%w: missing user_id", ErrValidation)
	case !j.JobType.Valid():
		return fmt.Errorf("%w: missing job_type", ErrValidation)
	case !j.Status.Valid():
		return fmt.Errorf("%w: missing status", ErrValidation)
	}
	if j.Status == StatusCompleted && len(j.Result) == 0 {
		return fmt.Errorf("%w: completed job requires a result", ErrInvalidTransition)
	}
	if j.Status == StatusFailed && strings.TrimSpace(j.Error) == "" {
		return fmt.Errorf("%w: failed job requires an error", ErrInvalidTransition)
	}
	if j.StartedAt != nil && j.CompletedAt != nil && j.CompletedAt.Before(*j.StartedAt) {
		return fmt.Errorf("%w: completed_at before started_at", ErrValidation)
	}
	return nil
}

// Summary is the payload sent to webhooks and stream listeners.
type Summary struct {
	JobID    string         `json:"job_id"`
	Status   Status         `json:"status"`
	Progress float64        `json:"progress"`
	Result   map[string]any `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func (j *Job) Summary() Summary {
	return Summary{
		JobID:    j.JobID,
		Status:   j.Status,
		Progress: j.Progress,
		Result:   j.Result,
		Error:    j.Error,
	}
}

func StatusPtr(s Status) *Status  { return &s }
func Float(v float64) *float64    { return &v }
func String(v string) *string     { return &v }
func Time(v time.Time) *time.Time { return &v }
