package museum

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

func TestGetJSONRetriesRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"value":42}`))
	}))
	defer srv.Close()

	c := NewClient("", "")
	var out struct {
		Value int `json:"value"`
	}
	if err := c.GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON after 429: %v", err)
	}
	if out.Value != 42 {
		t.Fatalf("decoded value = %d, want 42", out.Value)
	}
	if calls != 2 {
		t.Fatalf("requests = %d, want 2 (one retry)", calls)
	}
}

func TestGetJSONNonRetryableStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("", "")
	var out map[string]any
	err := c.GetJSON(context.Background(), srv.URL, &out)
	if err == nil {
		t.Fatalf("expected error on 404")
	}
	if calls != 1 {
		t.Fatalf("requests = %d, want 1 (4xx must not retry)", calls)
	}
}

func TestGetJSONSendsAuthToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("secret", "")
	var out map[string]any
	if err := c.GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("Authorization = %q, want Bearer secret", gotAuth)
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok.jpg" {
			w.Write([]byte("jpeg"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("", "")
	if !c.Probe(context.Background(), srv.URL+"/ok.jpg") {
		t.Fatalf("Probe on 200 = false, want true")
	}
	if c.Probe(context.Background(), srv.URL+"/missing.jpg") {
		t.Fatalf("Probe on 404 = true, want false")
	}
}

func TestBackoffClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		maxWait   time.Duration
	}{
		{"rate limit honors retry-after", &RateLimitError{StatusCode: 429, RetryAfter: 3 * time.Second}, true, 3 * time.Second},
		{"rate limit capped", &RateLimitError{StatusCode: 429, RetryAfter: 5 * time.Minute}, true, maxRetryAfter},
		{"server error", &ServerError{StatusCode: 503}, true, srvMaxBackoff + srvMaxBackoff/2},
		{"network error", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}, true, netMaxBackoff + netMaxBackoff/2},
		{"decode error", errors.New("unexpected status 404"), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait, retryable := backoffFor(tt.err, 0)
			if retryable != tt.retryable {
				t.Fatalf("retryable = %v, want %v", retryable, tt.retryable)
			}
			if retryable && wait > tt.maxWait {
				t.Fatalf("wait = %s, want <= %s", wait, tt.maxWait)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	if got := parseRetryAfter(h); got != 7*time.Second {
		t.Fatalf("seconds form = %s, want 7s", got)
	}

	h = http.Header{}
	h.Set("Retry-After", time.Now().Add(30*time.Second).UTC().Format(http.TimeFormat))
	if got := parseRetryAfter(h); got <= 0 || got > 31*time.Second {
		t.Fatalf("http-date form = %s, want ~30s", got)
	}

	h = http.Header{}
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(10*time.Second).Unix(), 10))
	if got := parseRetryAfter(h); got <= 0 || got > 11*time.Second {
		t.Fatalf("epoch reset form = %s, want ~10s", got)
	}

	if got := parseRetryAfter(http.Header{}); got != 0 {
		t.Fatalf("absent headers = %s, want 0", got)
	}
}
