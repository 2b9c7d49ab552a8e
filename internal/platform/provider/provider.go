package provider

import (
	"context"
	"errors"
	"fmt"
)

// Artifact is what a finished prediction produced. Either Data is set
// (inline output) or OutputURL points at the bytes.
type Artifact struct {
	PredictionID string
	ModelID      string
	OutputURL    string
	Data         []byte
	ContentType  string
	Metrics      map[string]any
}

// Invoker runs a model to completion and fetches output bytes.
type Invoker interface {
	Invoke(ctx context.Context, modelID string, input map[string]any) (*Artifact, error)
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// Error is a generation failure reported by, or while talking to, the provider.
type Error struct {
	ModelID      string
	PredictionID string
	StatusCode   int
	Message      string
	Err          error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	prefix := "provider"
	if e.ModelID != "" {
		prefix += " " + e.ModelID
	}
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s http %d: %s", prefix, e.StatusCode, msg)
	case e.PredictionID != "":
		return fmt.Sprintf("%s prediction %s: %s", prefix, e.PredictionID, msg)
	default:
		return fmt.Sprintf("%s: %s", prefix, msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

var ErrTimeout = errors.New("prediction timed out")
