package perplexity

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"

	"github.com/diogo/perplexity-webui-go/pkg/resilience"
)

const (
	defaultBaseURL     = "https://www.perplexity.ai"
	endpointAsk        = "/rest/sse/perplexity_ask"
	endpointSearchInit = "/search/new"
	endpointUpload     = "/rest/uploads/batch_create_upload_urls"

	sessionCookieName = "__Secure-next-auth.session-token"

	// Read at most this much of an error body for excerpts and marker checks.
	maxBodyExcerpt = 4096
)

// session binds one tls-client instance to the fingerprint it impersonates.
// Rotation replaces the whole value; a session is never mutated after build.
type session struct {
	client      tls_client.HttpClient
	fingerprint resilience.Fingerprint
}

// HTTPClient owns the connection to the Perplexity web API: a fingerprinted
// TLS session carrying the auth cookie, self-pacing, and retry with
// fingerprint rotation.
type HTTPClient struct {
	token    string
	baseURL  string
	cfg      ClientConfig
	retryCfg resilience.RetryConfig
	limiter  *resilience.RateLimiter
	logger   *slog.Logger

	mu   sync.Mutex
	sess *session
}

// NewHTTPClient builds the transport. The session token must be non-empty.
func NewHTTPClient(sessionToken string, cfg ClientConfig) (*HTTPClient, error) {
	if strings.TrimSpace(sessionToken) == "" {
		return nil, errors.New("perplexity: session token cannot be empty")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &HTTPClient{
		token:   sessionToken,
		baseURL: baseURL,
		cfg:     cfg,
		retryCfg: resilience.RetryConfig{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay,
			MaxDelay:   cfg.RetryMaxDelay,
			Jitter:     cfg.RetryJitter,
		},
		limiter: resilience.NewRateLimiter(cfg.RequestsPerSecond),
		logger:  logger,
	}

	fp := resilience.FingerprintByName(cfg.Impersonate)
	sess, err := c.newSession(fp)
	if err != nil {
		return nil, fmt.Errorf("perplexity: failed to create session: %w", err)
	}
	c.sess = sess

	logger.Debug("http client initialized",
		"fingerprint", fp.Name,
		"timeout", cfg.Timeout,
		"max_retries", cfg.MaxRetries,
		"requests_per_second", cfg.RequestsPerSecond,
		"rotate_fingerprint", cfg.RotateFingerprint)

	return c, nil
}

// newSession builds a fresh tls-client bound to fp, with the auth cookie set.
func (c *HTTPClient) newSession(fp resilience.Fingerprint) (*session, error) {
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = time.Hour
	}

	jar := tls_client.NewCookieJar()
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(timeout.Seconds())),
		tls_client.WithClientProfile(fp.Profile),
		tls_client.WithCookieJar(jar),
		tls_client.WithRandomTLSExtensionOrder(),
	}

	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, err
	}

	if u, err := url.Parse(c.baseURL); err == nil {
		client.SetCookies(u, []*http.Cookie{{Name: sessionCookieName, Value: c.token}})
	}

	return &session{client: client, fingerprint: fp}, nil
}

// currentSession returns the active session value.
func (c *HTTPClient) currentSession() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// rotate swaps in a new session with a random fingerprint. The old session is
// discarded wholesale so in-flight users keep a consistent value.
func (c *HTTPClient) rotate() {
	if !c.cfg.RotateFingerprint {
		return
	}

	fp := resilience.RandomFingerprint()
	sess, err := c.newSession(fp)
	if err != nil {
		c.logger.Warn("fingerprint rotation failed", "error", err)
		return
	}

	c.mu.Lock()
	old := c.sess
	c.sess = sess
	c.mu.Unlock()

	old.client.CloseIdleConnections()
	c.logger.Debug("fingerprint rotated", "old", old.fingerprint.Name, "new", fp.Name)
}

// headers returns the browser-shaped header set for API requests.
func (c *HTTPClient) headers() http.Header {
	return http.Header{
		"Accept":       {"text/event-stream, application/json"},
		"Content-Type": {"application/json"},
		"Origin":       {c.baseURL},
		"Referer":      {c.baseURL + "/"},
	}
}

// resolve turns a relative endpoint into a full URL.
func (c *HTTPClient) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "/") {
		return c.baseURL + endpoint
	}
	return endpoint
}

// isRetryable reports whether the transport should attempt the request again.
func isRetryable(err error) bool {
	var rateLimit *RateLimitError
	var cloudflare *CloudflareBlockError
	if errors.As(err, &rateLimit) || errors.As(err, &cloudflare) {
		return true
	}
	// Network and timeout failures carry no status code.
	var api *APIError
	return errors.As(err, &api) && api.StatusCode == 0
}

// classify turns a non-2xx response into the matching error. The body has
// already been read into excerpt and the response closed.
func classify(statusCode int, excerpt string, headers map[string][]string) error {
	if resilience.IsCloudflareStatus(statusCode) && resilience.IsCloudflareChallenge(excerpt, headers) {
		return &CloudflareBlockError{}
	}
	switch statusCode {
	case http.StatusForbidden:
		return &AuthenticationError{}
	case http.StatusTooManyRequests:
		return &RateLimitError{}
	}
	return &APIError{StatusCode: statusCode, Message: strings.TrimSpace(excerpt)}
}

// do executes one throttled attempt and classifies the outcome. On success
// the caller owns resp.Body.
func (c *HTTPClient) do(ctx context.Context, method, fullURL string, body []byte) (*http.Response, error) {
	c.limiter.Acquire()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("%s %s: %v", method, fullURL, err)}
	}
	req.Header = c.headers()

	start := time.Now()
	resp, err := c.currentSession().client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "url", fullURL, "error", err)
		return nil, &APIError{Message: fmt.Sprintf("%s %s: %v", method, fullURL, err)}
	}

	c.logger.Debug("response received",
		"method", method,
		"url", fullURL,
		"status", resp.StatusCode,
		"elapsed", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return resp, nil
	}

	excerpt := readExcerpt(resp.Body, maxBodyExcerpt)
	resp.Body.Close()

	err = classify(resp.StatusCode, excerpt, resp.Header)
	var cloudflare *CloudflareBlockError
	if errors.As(err, &cloudflare) {
		c.logger.Warn("cloudflare challenge detected",
			"status", resp.StatusCode,
			"markers", resilience.CloudflareMarkersIn(excerpt))
	}
	return nil, err
}

// doRetry wraps do with the retry policy, rotating the fingerprint before
// each retry sleep.
func (c *HTTPClient) doRetry(ctx context.Context, method, fullURL string, body []byte) (*http.Response, error) {
	var resp *http.Response

	err := resilience.Retry(ctx, c.retryCfg, isRetryable,
		func(err error, wait time.Duration) {
			c.logger.Warn("retrying request", "method", method, "url", fullURL, "error", err, "wait", wait)
			c.rotate()
		},
		func() error {
			var err error
			resp, err = c.do(ctx, method, fullURL, body)
			return err
		})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Get performs a GET against an endpoint with optional query parameters.
func (c *HTTPClient) Get(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	fullURL := c.resolve(endpoint)
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}
	return c.doRetry(ctx, http.MethodGet, fullURL, nil)
}

// Post performs a JSON POST against an endpoint.
func (c *HTTPClient) Post(ctx context.Context, endpoint string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("POST %s: encode payload: %v", endpoint, err)}
	}
	return c.doRetry(ctx, http.MethodPost, c.resolve(endpoint), body)
}

// StreamLines issues a streaming POST and invokes fn for every line of the
// response body. fn returns stop=true to end iteration early. The body is
// closed no matter how iteration ends.
func (c *HTTPClient) StreamLines(ctx context.Context, endpoint string, payload any, fn func(line []byte) (stop bool, err error)) error {
	resp, err := c.Post(ctx, endpoint, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lines := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return &APIError{Message: fmt.Sprintf("stream aborted: %v", err)}
		}

		lines++
		stop, err := fn(scanner.Bytes())
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return &APIError{Message: fmt.Sprintf("stream read: %v", err)}
	}

	c.logger.Debug("stream finished", "endpoint", endpoint, "lines", lines)
	return nil
}

// InitSearch primes a search session before the main ask. Best effort: any
// failure is logged and swallowed so the ask can still proceed.
func (c *HTTPClient) InitSearch(ctx context.Context, query string) {
	params := url.Values{"q": {query}}
	resp, err := c.Get(ctx, endpointSearchInit, params)
	if err != nil {
		c.logger.Warn("search init failed", "error", err)
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyExcerpt))
	resp.Body.Close()
}

// Close releases the network session.
func (c *HTTPClient) Close() {
	c.currentSession().client.CloseIdleConnections()
}

// readExcerpt reads up to n bytes from r.
func readExcerpt(r io.Reader, n int64) string {
	data, _ := io.ReadAll(io.LimitReader(r, n))
	return string(data)
}
