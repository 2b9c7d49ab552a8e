package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, srv *httptest.Server, maxWait time.Duration) *Client {
	t.Helper()
	c, err := NewClient(logger.Nop(), Config{
		BaseURL:      srv.URL,
		APIToken:     "tok",
		PollInterval: 5 * time.Millisecond,
		MaxWait:      maxWait,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestInvokePollsUntilSucceeded(t *testing.T) {
	var polls int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/models/acme/video/predictions":
			var body createRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.Input["prompt"] != "a cat" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"id":"p1","status":"starting"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/predictions/p1":
			if atomic.AddInt32(&polls, 1) < 3 {
				_, _ = w.Write([]byte(`{"id":"p1","status":"processing"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":["` + srv.URL + `/files/out.mp4"],"metrics":{"predict_time":1.5}}`))
		case r.URL.Path == "/files/out.mp4":
			w.Header().Set("Content-Type", "video/mp4; codecs=avc1")
			_, _ = w.Write([]byte("mp4-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, time.Minute)
	a, err := c.Invoke(context.Background(), "acme/video", map[string]any{"prompt": "a cat"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if a.PredictionID != "p1" || !strings.HasSuffix(a.OutputURL, "/files/out.mp4") {
		t.Fatalf("artifact: got=%+v", a)
	}
	if a.Metrics["predict_time"] != 1.5 {
		t.Fatalf("metrics: got=%v", a.Metrics)
	}
	data, ct, err := c.Download(context.Background(), a.OutputURL)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "mp4-bytes" || ct != "video/mp4" {
		t.Fatalf("download: data=%q ct=%q", data, ct)
	}
}

func TestInvokeVersionPinUsesPredictionsEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/predictions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body createRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Version != "abc123" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"id":"p2","status":"succeeded","output":{"url":"https://cdn.example.com/a.ksplat"}}`))
	}))
	defer srv.Close()

	a, err := newTestClient(t, srv, time.Minute).Invoke(context.Background(), "acme/splat:abc123", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if a.OutputURL != "https://cdn.example.com/a.ksplat" {
		t.Fatalf("output url: got=%q", a.OutputURL)
	}
}

func TestInvokeDecodesDataURIOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/models/acme/splat/predictions":
			_, _ = w.Write([]byte(`{"id":"p5","status":"starting"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/predictions/p5":
			_, _ = w.Write([]byte(`{"id":"p5","status":"succeeded","output":["data:application/octet-stream;base64,S1NQTAABAgM="]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a, err := newTestClient(t, srv, time.Minute).Invoke(context.Background(), "acme/splat", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(a.Data) != "KSPL\x00\x01\x02\x03" {
		t.Fatalf("data: got=%q", a.Data)
	}
	if a.ContentType != "application/octet-stream" {
		t.Fatalf("content type: want=%q got=%q", "application/octet-stream", a.ContentType)
	}
	if a.OutputURL != "" {
		t.Fatalf("output url: want empty got=%q", a.OutputURL)
	}
}

func TestInvokeRejectsMalformedDataURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p6","status":"succeeded","output":"data:text/plain,not-base64"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, time.Minute).Invoke(context.Background(), "acme/splat", nil)
	var pe *Error
	if !errors.As(err, &pe) || pe.PredictionID != "p6" {
		t.Fatalf("want *Error for p6, got %v", err)
	}
}

func TestErrorMessageOmitsBlankModel(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want string
	}{
		{"no model", &Error{Message: "model id required"}, "provider: model id required"},
		{"no model with status", &Error{StatusCode: 502, Message: "bad gateway"}, "provider http 502: bad gateway"},
		{"model", &Error{ModelID: "acme/video", Message: "x"}, "provider acme/video: x"},
		{"prediction", &Error{ModelID: "acme/video", PredictionID: "p1", Err: ErrTimeout}, "provider acme/video prediction p1: " + ErrTimeout.Error()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("want=%q got=%q", tc.want, got)
			}
		})
	}
}

func TestInvokeFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		maxWait time.Duration
		check   func(t *testing.T, err error)
	}{
		{
			name: "prediction failed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"id":"p3","status":"failed","error":"NSFW content detected"}`))
			},
			maxWait: time.Minute,
			check: func(t *testing.T, err error) {
				if !strings.Contains(err.Error(), "NSFW content detected") {
					t.Fatalf("want provider message, got %v", err)
				}
			},
		},
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"detail":"bad input"}`))
			},
			maxWait: time.Minute,
			check: func(t *testing.T, err error) {
				var pe *Error
				if !errors.As(err, &pe) || pe.StatusCode != http.StatusUnprocessableEntity {
					t.Fatalf("want *Error with 422, got %v", err)
				}
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"id":"p4","status":"processing"}`))
			},
			maxWait: 30 * time.Millisecond,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrTimeout) {
					t.Fatalf("want ErrTimeout, got %v", err)
				}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			_, err := newTestClient(t, srv, tc.maxWait).Invoke(context.Background(), "acme/video", map[string]any{})
			if err == nil {
				t.Fatalf("expected error")
			}
			tc.check(t, err)
		})
	}
}

func TestDownloadDoesNotLeakTokenToOtherHosts(t *testing.T) {
	var sawAuth atomic.Bool
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			sawAuth.Store(true)
		}
		_, _ = w.Write([]byte("x"))
	}))
	defer cdn.Close()

	c, _ := NewClient(logger.Nop(), Config{BaseURL: "https://api.provider.example", APIToken: "tok"})
	if _, _, err := c.Download(context.Background(), cdn.URL+"/file"); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if sawAuth.Load() {
		t.Fatalf("token sent to a foreign host")
	}
	if _, _, err := c.Download(context.Background(), "file:///etc/passwd"); err == nil {
		t.Fatalf("expected non-http url to be rejected")
	}
}
