package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/platform/docstore"
)

// encodeJob is the only place job enums become strings.
func encodeJob(j *domain.Job) docstore.Document {
	params := j.Parameters
	if params == nil {
		params = map[string]any{}
	}
	doc := docstore.Document{
		"job_id":      j.JobID,
		"user_id":     j.UserID,
		"job_type":    j.JobType.String(),
		"status":      j.Status.String(),
		"created_at":  docstore.FormatTime(j.CreatedAt),
		"modified_at": docstore.FormatTime(j.ModifiedAt),
		"progress":    j.Progress,
		"parameters":  params,
		"version":     j.Version,
	}
	if j.ProjectID != "" {
		doc["project_id"] = j.ProjectID
	}
	if j.StartedAt != nil {
		doc["started_at"] = docstore.FormatTime(*j.StartedAt)
	}
	if j.CompletedAt != nil {
		doc["completed_at"] = docstore.FormatTime(*j.CompletedAt)
	}
	if len(j.Result) > 0 {
		doc["result"] = j.Result
	}
	if j.Error != "" {
		doc["error"] = j.Error
	}
	if j.WebhookURL != "" {
		doc["webhook_url"] = j.WebhookURL
	}
	return doc
}

func decodeJob(doc docstore.Document) (*domain.Job, error) {
	j := &domain.Job{
		JobID:      str(doc["job_id"]),
		UserID:     str(doc["user_id"]),
		ProjectID:  str(doc["project_id"]),
		Error:      str(doc["error"]),
		WebhookURL: str(doc["webhook_url"]),
		Parameters: obj(doc["parameters"]),
		Result:     obj(doc["result"]),
	}
	if j.Parameters == nil {
		j.Parameters = map[string]any{}
	}
	var err error
	if j.JobType, err = domain.ParseJobType(str(doc["job_type"])); err != nil {
		return nil, fmt.Errorf("job %s: %w", j.JobID, err)
	}
	if j.Status, err = domain.ParseStatus(str(doc["status"])); err != nil {
		return nil, fmt.Errorf("job %s: %w", j.JobID, err)
	}
	if j.CreatedAt, err = parseTime(doc, "created_at"); err != nil {
		return nil, err
	}
	if j.ModifiedAt, err = parseTime(doc, "modified_at"); err != nil {
		return nil, err
	}
	if j.StartedAt, err = parseOptTime(doc, "started_at"); err != nil {
		return nil, err
	}
	if j.CompletedAt, err = parseOptTime(doc, "completed_at"); err != nil {
		return nil, err
	}
	if v, ok := doc["progress"].(float64); ok {
		j.Progress = v
	}
	if v, ok := doc["version"].(float64); ok {
		j.Version = int64(v)
	}
	return j, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func obj(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func parseTime(doc docstore.Document, key string) (time.Time, error) {
	t, err := docstore.ParseTime(str(doc[key]))
	if err != nil {
		return time.Time{}, fmt.Errorf("job %s: bad %s: %w", str(doc["job_id"]), key, err)
	}
	return t, nil
}

func parseOptTime(doc docstore.Document, key string) (*time.Time, error) {
	if str(doc[key]) == "" {
		return nil, nil
	}
	t, err := parseTime(doc, key)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func roundTrip(doc docstore.Document) (docstore.Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out docstore.Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
