package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

// Updater is the only way a running job changes state.
type Updater interface {
	UpdateJob(ctx context.Context, jobID string, upd domain.Update) (*domain.Job, error)
}

// ParamError reports a missing or malformed job parameter.
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing required parameter: %s", e.Param)
	}
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
}

/*
Context is the handle a pipeline gets for one job execution. Pipelines never
write job state themselves; they report progress and outcome through it and
it forwards to the job service, which owns persistence and notification.
*/
type Context struct {
	Ctx     context.Context
	JobID   string
	JobType domain.JobType
	Log     *logger.Logger

	params   map[string]any
	updater  Updater
	now      func() time.Time
	terminal bool
}

func NewContext(ctx context.Context, jobID string, jobType domain.JobType, params map[string]any, updater Updater, log *logger.Logger) *Context {
	if params == nil {
		params = map[string]any{}
	}
	return &Context{
		Ctx:     ctx,
		JobID:   jobID,
		JobType: jobType,
		Log:     log.With("job_id", jobID, "job_type", jobType.String()),
		params:  params,
		updater: updater,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (c *Context) Params() map[string]any { return c.params }

// String returns a trimmed string parameter.
func (c *Context) String(key string) (string, bool) {
	s, ok := c.params[key].(string)
	s = strings.TrimSpace(s)
	return s, ok && s != ""
}

func (c *Context) RequireString(key string) (string, error) {
	v, ok := c.params[key]
	if !ok || v == nil {
		return "", &ParamError{Param: key}
	}
	s, isStr := v.(string)
	if !isStr {
		return "", &ParamError{Param: key, Reason: "must be a string"}
	}
	if strings.TrimSpace(s) == "" {
		return "", &ParamError{Param: key}
	}
	return strings.TrimSpace(s), nil
}

func (c *Context) Start() error {
	now := c.now()
	_, err := c.updater.UpdateJob(c.Ctx, c.JobID, domain.Update{
		Status:    domain.StatusPtr(domain.StatusProcessing),
		StartedAt: &now,
		Progress:  domain.Float(0),
	})
	return err
}

func (c *Context) Progress(pct float64) error {
	_, err := c.updater.UpdateJob(c.Ctx, c.JobID, domain.Update{Progress: &pct})
	return err
}

func (c *Context) Complete(result map[string]any) error {
	now := c.now()
	_, err := c.updater.UpdateJob(c.Ctx, c.JobID, domain.Update{
		Status:      domain.StatusPtr(domain.StatusCompleted),
		Progress:    domain.Float(100),
		CompletedAt: &now,
		Result:      result,
	})
	if err == nil {
		c.terminal = true
	}
	return err
}

// Fail records cause as the job error. It is a no-op once the job reached a
// terminal state through this context.
func (c *Context) Fail(cause error) error {
	if c.terminal {
		return nil
	}
	msg := "unknown error"
	if cause != nil && strings.TrimSpace(cause.Error()) != "" {
		msg = cause.Error()
	}
	now := c.now()
	_, err := c.updater.UpdateJob(c.Ctx, c.JobID, domain.Update{
		Status:      domain.StatusPtr(domain.StatusFailed),
		CompletedAt: &now,
		Error:       &msg,
	})
	if err == nil {
		c.terminal = true
	}
	return err
}

func (c *Context) Terminal() bool { return c.terminal }
