package realtime

import "time"

const (
	MessageConnected = "connected"
	MessageJobUpdate = "job_update"
	MessageHeartbeat = "heartbeat"
)

// Message is one entry in a job's stream.
type Message struct {
	Type      string         `json:"type"`
	JobID     string         `json:"job_id"`
	Status    string         `json:"status,omitempty"`
	Progress  *float64       `json:"progress,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
