package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

// WebhookPayload is the JSON body POSTed to a job's webhook_url.
type WebhookPayload struct {
	JobID     string         `json:"job_id"`
	Status    string         `json:"status"`
	Progress  float64        `json:"progress"`
	Result    map[string]any `json:"result"`
	Error     string         `json:"error"`
	Timestamp time.Time      `json:"timestamp"`
}

// WebhookDeliveryError is a failed POST. It is logged, never returned to the
// code that changed the job.
type WebhookDeliveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *WebhookDeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("webhook %s: http %d", e.URL, e.StatusCode)
}

func (e *WebhookDeliveryError) Unwrap() error { return e.Err }

type WebhookConfig struct {
	Timeout    time.Duration
	Shards     int
	QueueSize  int
	UserAgent  string
	HTTPClient *http.Client
}

type webhookDelivery struct {
	url     string
	payload WebhookPayload
}

/*
WebhookDispatcher delivers webhooks in the background. Deliveries for one job
always land on the same shard, so a receiver sees a job's updates in the order
they were written. A full shard drops the delivery.
*/
type WebhookDispatcher struct {
	log       *logger.Logger
	client    *http.Client
	timeout   time.Duration
	userAgent string

	mu     sync.RWMutex
	closed bool
	shards []chan webhookDelivery
	wg     sync.WaitGroup
}

func NewWebhookDispatcher(baseLog *logger.Logger, cfg WebhookConfig) *WebhookDispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Shards <= 0 {
		cfg.Shards = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "mediaforge-webhooks/1"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	d := &WebhookDispatcher{
		log:       baseLog.With("service", "WebhookDispatcher"),
		client:    client,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		shards:    make([]chan webhookDelivery, cfg.Shards),
	}
	for i := range d.shards {
		ch := make(chan webhookDelivery, cfg.QueueSize)
		d.shards[i] = ch
		d.wg.Add(1)
		go d.run(ch)
	}
	return d
}

func (d *WebhookDispatcher) Enqueue(url string, payload WebhookPayload) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("Webhook dropped after shutdown", "job_id", payload.JobID)
		return false
	}
	select {
	case d.shards[d.shardFor(payload.JobID)] <- webhookDelivery{url: url, payload: payload}:
		return true
	default:
		d.log.Warn("Webhook queue full; dropping delivery", "job_id", payload.JobID, "status", payload.Status)
		return false
	}
}

// Deliver POSTs once and reports the outcome. Non-2xx responses are errors.
func (d *WebhookDispatcher) Deliver(ctx context.Context, url string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &WebhookDeliveryError{URL: url, Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &WebhookDeliveryError{URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return &WebhookDeliveryError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &WebhookDeliveryError{URL: url, StatusCode: resp.StatusCode}
	}
	return nil
}

// Close stops accepting deliveries and waits for queued ones, or ctx.
func (d *WebhookDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *WebhookDispatcher) run(ch <-chan webhookDelivery) {
	defer d.wg.Done()
	for item := range ch {
		if err := d.Deliver(context.Background(), item.url, item.payload); err != nil {
			d.log.Warn("Webhook delivery failed", "job_id", item.payload.JobID, "webhook_url", item.url, "error", err)
			continue
		}
		d.log.Debug("Webhook delivered", "job_id", item.payload.JobID, "status", item.payload.Status)
	}
}

func (d *WebhookDispatcher) shardFor(jobID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(jobID))
	return int(h.Sum32() % uint32(len(d.shards)))
}
