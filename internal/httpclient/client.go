package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/foodmap/foodmap/internal/rate"
)

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// RoundFunc executes a single HTTP request.
type RoundFunc func(req *http.Request) (*http.Response, error)

// Interceptor wraps request execution. Interceptors registered with Use run
// in registration order, outermost first; the innermost call is the retrying
// transport itself. An interceptor must return the response produced by next
// unmodified; side effects only.
type Interceptor func(next RoundFunc) RoundFunc

// Client is the constrained outbound HTTP client used by every component
// that talks to the network. It handles rate limiting, retries with backoff,
// and an explicit interceptor chain.
type Client struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	retryMax     int
	tag          string
	interceptors []Interceptor
}

// New creates a Client. rateMgr may be nil to disable rate limiting.
func New(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client, retryMax int, tag string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		logger:   logger,
		rateMgr:  rateMgr,
		http:     httpClient,
		retryMax: retryMax,
		tag:      tag,
	}
}

// Use appends an interceptor to the chain.
func (c *Client) Use(i Interceptor) {
	c.interceptors = append(c.interceptors, i)
}

// Do executes req through the interceptor chain. The response is whatever
// the underlying transport produced; interceptors cannot replace it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	round := c.send
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		round = c.interceptors[i](round)
	}
	return round(req)
}

// Send executes req directly, bypassing the interceptor chain. Interceptors
// use it for their own side-effect calls so they cannot re-trigger themselves.
func (c *Client) Send(req *http.Request) (*http.Response, error) {
	return c.send(req)
}

// send runs the rate-limited retry loop. Transport failures and 5xx
// responses are retried with backoff; any delivered response (including 4xx)
// is returned as-is with a nil error so callers see exactly what the server
// sent.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if c.rateMgr != nil {
		if err := c.rateMgr.Wait(ctx, req.URL.Host); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn(c.tag+".http_failed",
				zap.String("url", req.URL.String()),
				zap.Error(err),
				zap.Int("attempt", attempt))
			select {
			case <-time.After(Backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode >= 500 && attempt < c.retryMax {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			c.logger.Warn(c.tag+".server_error",
				zap.Int("status", resp.StatusCode),
				zap.String("url", req.URL.String()),
				zap.Duration("latency", time.Since(start)))
			lastErr = fmt.Errorf("%s server error: %d", c.tag, resp.StatusCode)
			select {
			case <-time.After(Backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		c.logger.Debug(c.tag+".http_done",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(start)))

		return resp, nil
	}

	return nil, fmt.Errorf("%s request failed after %d attempts: %w", c.tag, c.retryMax+1, lastErr)
}

// DoJSON executes req through the chain and JSON-decodes a success response
// into out. Non-2xx statuses are returned as errors.
func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) error {
	resp, err := c.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %d", c.tag, resp.StatusCode)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			c.logger.Warn(c.tag+".decode_failed",
				zap.Error(err),
				zap.String("url", req.URL.String()))
			return fmt.Errorf("decode failed: %w", err)
		}
	}
	return nil
}
