package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Document is a JSON object. Values round-trip through encoding/json, so
// numbers come back as float64 regardless of what was written.
type Document map[string]any

// TimeLayout is the fixed-width UTC layout documents use for timestamps so
// that lexicographic ordering matches chronological ordering.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// Filter is an equality predicate on a top-level field.
type Filter struct {
	Field string
	Value string
}

type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// MutateFunc receives the current document and returns its replacement.
// Returning an error aborts the write and is passed back to the caller as is.
type MutateFunc func(doc Document) (Document, error)

type Store interface {
	// Set writes doc under (collection, id), replacing any existing document.
	Set(ctx context.Context, collection, id string, doc Document) error
	// Get returns ok=false when the document does not exist.
	Get(ctx context.Context, collection, id string) (doc Document, ok bool, err error)
	// Mutate runs a read-modify-write of a single document atomically with
	// respect to other Mutate and Set calls on the same id. It returns
	// ErrNotFound when the document does not exist.
	Mutate(ctx context.Context, collection, id string, fn MutateFunc) (Document, error)
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
}

var ErrNotFound = errors.New("docstore: document not found")

// BackendError wraps failures of the underlying database.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("docstore %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func backendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}

var fieldRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

func validateQuery(collection string, q Query) error {
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("docstore: empty collection")
	}
	for _, f := range q.Filters {
		if !fieldRE.MatchString(f.Field) {
			return fmt.Errorf("docstore: invalid filter field %q", f.Field)
		}
	}
	if q.OrderBy != "" && !fieldRE.MatchString(q.OrderBy) {
		return fmt.Errorf("docstore: invalid order field %q", q.OrderBy)
	}
	if q.Limit < 0 {
		return fmt.Errorf("docstore: negative limit")
	}
	return nil
}

func validateKey(collection, id string) error {
	if strings.TrimSpace(collection) == "" || strings.TrimSpace(id) == "" {
		return fmt.Errorf("docstore: empty collection or id")
	}
	return nil
}

func encode(doc Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("docstore: nil document")
	}
	return json.Marshal(doc)
}

func decode(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// fieldString renders a document value the way the SQL backends compare it.
func fieldString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%f", t), "0"), "."), true
	default:
		return fmt.Sprint(t), true
	}
}
