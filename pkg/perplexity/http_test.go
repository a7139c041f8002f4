package perplexity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func newTestHTTPClient(t *testing.T, serverURL string, mutate func(*ClientConfig)) *HTTPClient {
	t.Helper()

	cfg := DefaultClientConfig()
	cfg.BaseURL = serverURL
	cfg.MaxRetries = 0
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 10 * time.Millisecond
	cfg.RequestsPerSecond = 0
	cfg.RotateFingerprint = false
	cfg.Timeout = 30 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	client, err := NewHTTPClient("test-session-token", cfg)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestNewHTTPClientRejectsEmptyToken(t *testing.T) {
	for _, token := range []string{"", "   ", "\t\n"} {
		if _, err := NewHTTPClient(token, DefaultClientConfig()); err == nil {
			t.Errorf("NewHTTPClient(%q) accepted a blank token", token)
		}
	}
}

func TestClassify(t *testing.T) {
	cfHeaders := map[string][]string{"Cf-Ray": {"8a1b2c3d4e5f-IAD"}}

	tests := []struct {
		name    string
		status  int
		body    string
		headers map[string][]string
		want    any
	}{
		{
			name:   "plain 403 is an auth failure",
			status: http.StatusForbidden,
			body:   "forbidden",
			want:   new(*AuthenticationError),
		},
		{
			name:   "429 is a rate limit",
			status: http.StatusTooManyRequests,
			body:   "slow down",
			want:   new(*RateLimitError),
		},
		{
			name:    "403 with challenge markers is cloudflare",
			status:  http.StatusForbidden,
			body:    "<title>Just a moment...</title>",
			headers: cfHeaders,
			want:    new(*CloudflareBlockError),
		},
		{
			name:    "503 with challenge body is cloudflare",
			status:  http.StatusServiceUnavailable,
			body:    "checking your browser before accessing",
			headers: cfHeaders,
			want:    new(*CloudflareBlockError),
		},
		{
			name:   "503 without markers is a generic API error",
			status: http.StatusServiceUnavailable,
			body:   "upstream maintenance",
			want:   new(*APIError),
		},
		{
			name:   "500 is a generic API error",
			status: http.StatusInternalServerError,
			body:   "boom",
			want:   new(*APIError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.status, tt.body, tt.headers)
			switch target := tt.want.(type) {
			case **AuthenticationError:
				if !errors.As(err, target) {
					t.Errorf("classify() = %v, want AuthenticationError", err)
				}
			case **RateLimitError:
				if !errors.As(err, target) {
					t.Errorf("classify() = %v, want RateLimitError", err)
				}
			case **CloudflareBlockError:
				if !errors.As(err, target) {
					t.Errorf("classify() = %v, want CloudflareBlockError", err)
				}
			case **APIError:
				if !errors.As(err, target) {
					t.Fatalf("classify() = %v, want APIError", err)
				}
				if (*target).StatusCode != tt.status {
					t.Errorf("StatusCode = %d, want %d", (*target).StatusCode, tt.status)
				}
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &RateLimitError{}, true},
		{"cloudflare block", &CloudflareBlockError{}, true},
		{"network failure without status", &APIError{Message: "connection reset"}, true},
		{"server error with status", &APIError{StatusCode: 500, Message: "boom"}, false},
		{"auth failure", &AuthenticationError{}, false},
		{"parsing failure", &ParsingError{Message: "bad shape"}, false},
		{"clarifying questions", &ClarifyingQuestionsError{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestGetRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	client := newTestHTTPClient(t, server.URL, func(cfg *ClientConfig) {
		cfg.MaxRetries = 3
	})

	resp, err := client.Get(context.Background(), "/anything", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestGetRetryExhaustion(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestHTTPClient(t, server.URL, func(cfg *ClientConfig) {
		cfg.MaxRetries = 2
	})

	_, err := client.Get(context.Background(), "/anything", nil)
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("err = %v, want *RateLimitError", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want max_retries+1 = 3", got)
	}
}

func TestAuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestHTTPClient(t, server.URL, func(cfg *ClientConfig) {
		cfg.MaxRetries = 3
	})

	_, err := client.Get(context.Background(), "/anything", nil)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want *AuthenticationError", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want 1", got)
	}
}

func TestPostSendsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"key":"value"}` {
			t.Errorf("body = %s", body)
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	client := newTestHTTPClient(t, server.URL, nil)

	resp, err := client.Post(context.Background(), "/endpoint", map[string]string{"key": "value"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	resp.Body.Close()
}

func TestGetAppendsQueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "hello world" {
			t.Errorf("q = %q", got)
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	client := newTestHTTPClient(t, server.URL, nil)

	resp, err := client.Get(context.Background(), "/search", url.Values{"q": {"hello world"}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
}

func TestStreamLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "one\ntwo\nthree\n")
	}))
	defer server.Close()

	client := newTestHTTPClient(t, server.URL, nil)

	var lines []string
	err := client.StreamLines(context.Background(), "/stream", map[string]string{}, func(line []byte) (bool, error) {
		lines = append(lines, string(line))
		return false, nil
	})
	if err != nil {
		t.Fatalf("StreamLines: %v", err)
	}
	if len(lines) != 3 || lines[0] != "one" || lines[2] != "three" {
		t.Errorf("lines = %v", lines)
	}
}

func TestStreamLinesEarlyStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "one\ntwo\nthree\n")
	}))
	defer server.Close()

	client := newTestHTTPClient(t, server.URL, nil)

	var seen int
	err := client.StreamLines(context.Background(), "/stream", map[string]string{}, func(line []byte) (bool, error) {
		seen++
		return true, nil
	})
	if err != nil {
		t.Fatalf("StreamLines: %v", err)
	}
	if seen != 1 {
		t.Errorf("callback ran %d times, want 1", seen)
	}
}

func TestStreamLinesPropagatesCallbackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "one\n")
	}))
	defer server.Close()

	client := newTestHTTPClient(t, server.URL, nil)

	wantErr := &ParsingError{Message: "bad line"}
	err := client.StreamLines(context.Background(), "/stream", map[string]string{}, func(line []byte) (bool, error) {
		return false, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want callback error", err)
	}
}

func TestResolve(t *testing.T) {
	client := newTestHTTPClient(t, "http://example.test", nil)

	if got := client.resolve("/rest/thing"); got != "http://example.test/rest/thing" {
		t.Errorf("resolve relative = %q", got)
	}
	if got := client.resolve("https://other.test/abs"); got != "https://other.test/abs" {
		t.Errorf("resolve absolute = %q", got)
	}
}
