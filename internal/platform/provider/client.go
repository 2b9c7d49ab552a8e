package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

type Config struct {
	BaseURL      string
	APIToken     string
	PollInterval time.Duration
	MaxWait      time.Duration
	MaxDownload  int64
	HTTPClient   *http.Client
}

type prediction struct {
	ID      string          `json:"id"`
	Model   string          `json:"model,omitempty"`
	Version string          `json:"version,omitempty"`
	Status  string          `json:"status"`
	Output  json.RawMessage `json:"output,omitempty"`
	Error   any             `json:"error,omitempty"`
	Metrics map[string]any  `json:"metrics,omitempty"`
}

type createRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
}

// Client talks to a predictions-style API: create a prediction, poll it
// until it settles, then hand back the output reference.
type Client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("missing PROVIDER_BASE_URL")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_BASE_URL: %w", err)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 10 * time.Minute
	}
	if cfg.MaxDownload <= 0 {
		cfg.MaxDownload = 512 << 20
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{log: log.With("client", "ProviderClient"), cfg: cfg, http: hc}, nil
}

func (c *Client) Invoke(ctx context.Context, modelID string, input map[string]any) (*Artifact, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, &Error{Message: "model id required"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.MaxWait)
	defer cancel()

	p, err := c.create(ctx, modelID, input)
	if err != nil {
		return nil, timeoutOr(ctx, modelID, "", err)
	}
	c.log.Info("Prediction created", "model", modelID, "prediction_id", p.ID, "status", p.Status)

	for {
		switch strings.ToLower(strings.TrimSpace(p.Status)) {
		case "succeeded", "completed":
			return c.artifact(modelID, p)
		case "failed", "canceled", "cancelled":
			return nil, &Error{ModelID: modelID, PredictionID: p.ID, Message: errorMessage(p.Error, p.Status)}
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, &Error{ModelID: modelID, PredictionID: p.ID, Err: ErrTimeout}
			}
			return nil, &Error{ModelID: modelID, PredictionID: p.ID, Err: ctx.Err()}
		case <-time.After(c.cfg.PollInterval):
		}
		next, err := c.get(ctx, modelID, p.ID)
		if err != nil {
			return nil, timeoutOr(ctx, modelID, p.ID, err)
		}
		p = next
	}
}

// create accepts "owner/name" model ids or "owner/name:version" pins.
func (c *Client) create(ctx context.Context, modelID string, input map[string]any) (*prediction, error) {
	path := "/v1/models/" + modelID + "/predictions"
	body := createRequest{Input: input}
	if _, version, ok := strings.Cut(modelID, ":"); ok {
		path = "/v1/predictions"
		body.Version = version
	}
	var out prediction
	if err := c.doJSON(ctx, modelID, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, &Error{ModelID: modelID, Message: "prediction response missing id"}
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, modelID, id string) (*prediction, error) {
	var out prediction
	if err := c.doJSON(ctx, modelID, http.MethodGet, "/v1/predictions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, modelID, method, path string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &Error{ModelID: modelID, Err: err}
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rdr)
	if err != nil {
		return &Error{ModelID: modelID, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return &Error{ModelID: modelID, Err: err}
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return &Error{ModelID: modelID, Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &Error{ModelID: modelID, StatusCode: res.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{ModelID: modelID, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// artifact resolves the prediction output: a URL, a list of URLs (first
// wins), or an object with a "url" field.
func (c *Client) artifact(modelID string, p *prediction) (*Artifact, error) {
	a := &Artifact{PredictionID: p.ID, ModelID: modelID, Metrics: p.Metrics}
	ref := ""
	var single string
	var list []string
	var obj struct {
		URL string `json:"url"`
	}
	switch {
	case json.Unmarshal(p.Output, &single) == nil && single != "":
		ref = single
	case json.Unmarshal(p.Output, &list) == nil && len(list) > 0:
		ref = list[0]
	case json.Unmarshal(p.Output, &obj) == nil && obj.URL != "":
		ref = obj.URL
	default:
		return nil, &Error{ModelID: modelID, PredictionID: p.ID, Message: "prediction succeeded without output"}
	}
	if !strings.HasPrefix(ref, "data:") {
		a.OutputURL = ref
		return a, nil
	}
	data, contentType, err := decodeDataURI(ref)
	if err != nil {
		return nil, &Error{ModelID: modelID, PredictionID: p.ID, Message: "invalid data uri output", Err: err}
	}
	a.Data, a.ContentType = data, contentType
	return a, nil
}

// decodeDataURI handles inline "data:<type>;base64,<payload>" outputs.
func decodeDataURI(ref string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, "", errors.New("missing payload separator")
	}
	mediaType, encoding, _ := strings.Cut(header, ";")
	if !strings.EqualFold(strings.TrimSpace(encoding), "base64") {
		return nil, "", fmt.Errorf("unsupported data uri encoding %q", encoding)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, "", fmt.Errorf("decode base64 payload: %w", err)
	}
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return data, mediaType, nil
}

func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, "", &Error{Message: fmt.Sprintf("invalid output url %q", rawURL)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", &Error{Err: err}
	}
	// Provider output links are usually pre-signed CDN URLs; only send the
	// token back to the provider's own host.
	if c.cfg.APIToken != "" && sameHost(c.cfg.BaseURL, u) {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, "", &Error{Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, "", &Error{StatusCode: res.StatusCode, Message: "download failed: " + res.Status}
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, c.cfg.MaxDownload+1))
	if err != nil {
		return nil, "", &Error{Err: err}
	}
	if int64(len(raw)) > c.cfg.MaxDownload {
		return nil, "", &Error{Message: fmt.Sprintf("artifact exceeds %d bytes", c.cfg.MaxDownload)}
	}
	ct := strings.TrimSpace(strings.Split(res.Header.Get("Content-Type"), ";")[0])
	return raw, ct, nil
}

// timeoutOr reports ErrTimeout when the wait budget ran out mid-request.
func timeoutOr(ctx context.Context, modelID, predictionID string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{ModelID: modelID, PredictionID: predictionID, Err: ErrTimeout}
	}
	return err
}

func sameHost(baseURL string, u *url.URL) bool {
	bu, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(bu.Hostname(), u.Hostname())
}

func errorMessage(v any, status string) string {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) != "" {
			return t
		}
	case map[string]any:
		if m, ok := t["message"].(string); ok && m != "" {
			return m
		}
	}
	return "prediction " + strings.ToLower(status)
}
