// Package httpclient is the outbound JSON client shared by the remote
// statistics analyzer and the remote token validator.
//
// Every call is bound to the caller's context, gets a finite timeout and
// waits for a slot in a bounded semaphore before it is sent. Failures are
// classified into *api.DownstreamError so callers can tell a peer that
// answered with an error from one that could not be reached.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rhuss/qrgate/pkg/api"
	"github.com/rhuss/qrgate/pkg/debug"
	"github.com/rhuss/qrgate/pkg/observability"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultMaxConcurrent = 64
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4096

// Options configures a Client.
type Options struct {
	Timeout       time.Duration
	MaxConcurrent int64

	// HTTPClient overrides the underlying client, mainly for tests.
	HTTPClient *http.Client

	// Limiter shares one concurrency bound between several clients. When
	// nil each client gets its own semaphore of MaxConcurrent slots.
	Limiter *semaphore.Weighted
}

// Client posts JSON to one peer service.
type Client struct {
	service    string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	sem        *semaphore.Weighted
}

// New creates a Client for the peer role service reachable at baseURL.
func New(service, baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	sem := opts.Limiter
	if sem == nil {
		sem = semaphore.NewWeighted(opts.MaxConcurrent)
	}

	return &Client{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
		sem:        sem,
	}
}

// BaseURL returns the normalized peer base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostJSON sends in as JSON to baseURL+path with an optional bearer token
// and decodes a 2xx response body into out (skipped when out is nil).
// All failures are *api.DownstreamError.
func (c *Client) PostJSON(ctx context.Context, path, token string, in, out any) error {
	url := c.baseURL + path

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", c.service, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return c.record(c.networkError(url, err), 0)
	}
	defer c.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", c.service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	debug.Log("downstream", "request", "service", c.service, "url", url, "bytes", len(body))
	debug.Trace("downstream", "request body", "service", c.service, "body", debug.Truncate(string(body), 2048))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.record(c.networkError(url, err), time.Since(start))
	}
	defer resp.Body.Close()

	debug.Log("downstream", "response", "service", c.service, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.record(&api.DownstreamError{
			Service:    c.service,
			URL:        url,
			StatusCode: resp.StatusCode,
			Detail:     ExtractErrorMessage(resp.Body),
		}, time.Since(start))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return c.record(&api.DownstreamError{
				Service:    c.service,
				URL:        url,
				StatusCode: resp.StatusCode,
				Detail:     "invalid response body",
				Err:        err,
			}, time.Since(start))
		}
	}

	return c.record(nil, time.Since(start))
}

func (c *Client) networkError(url string, err error) *api.DownstreamError {
	return &api.DownstreamError{
		Service:    c.service,
		URL:        url,
		NoResponse: true,
		Timeout:    isTimeout(err),
		Err:        err,
	}
}

// record updates downstream metrics and passes err through.
func (c *Client) record(err *api.DownstreamError, elapsed time.Duration) error {
	outcome := observability.DownstreamOK
	switch {
	case err == nil:
	case err.Timeout:
		outcome = observability.DownstreamTimeout
	case err.NoResponse:
		outcome = observability.DownstreamNoResponse
	default:
		outcome = observability.DownstreamStatus
	}
	observability.DownstreamRequestsTotal.WithLabelValues(c.service, outcome).Inc()
	if elapsed > 0 {
		observability.DownstreamLatency.WithLabelValues(c.service).Observe(elapsed.Seconds())
	}

	if err == nil {
		return nil
	}
	debug.Log("downstream", "call failed", "service", c.service, "outcome", outcome, "error", err)
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ExtractErrorMessage reads at most 4KB of an error body and returns the
// peer's message: the "error" field of a JSON envelope (with "details"
// appended when present), a "message" field, or the trimmed text itself.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}

	var envelope struct {
		Error   any    `json:"error"`
		Details string `json:"details"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		msg := ""
		switch e := envelope.Error.(type) {
		case string:
			msg = e
		case map[string]any:
			if m, ok := e["message"].(string); ok {
				msg = m
			}
		}
		if msg == "" {
			msg = envelope.Message
		}
		if msg != "" && envelope.Details != "" {
			return msg + ": " + envelope.Details
		}
		if msg != "" {
			return msg
		}
	}

	return strings.TrimSpace(string(data))
}
