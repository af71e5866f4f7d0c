// Package comms provides the HTTP client shared by every call to the
// remote coordination service.
package comms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client wraps an http.Client with a bounded per-request timeout and a
// process-wide outbound rate limit.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a Client. Every request the agent sends goes through
// the same limiter so a misbehaving loop cannot flood the service.
func NewClient(timeout time.Duration, requestsPerMinute int) *Client {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
	}
}

// DoJSON sends payload as a JSON body and decodes the JSON response into
// out (which may be nil). Transport failures, non-2xx statuses and
// undecodable bodies are all returned as *CallError so every call site
// branches on one classification.
func (c *Client) DoJSON(ctx context.Context, method, url string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &CallError{Kind: KindTransient, Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &CallError{Kind: KindTransient, Err: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return &CallError{Kind: KindTransient, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures land here.
		return &CallError{Kind: KindTransient, Err: err}
	}
	defer resp.Body.Close()

	if ce := Classify(resp.StatusCode, resp.Header); ce != nil {
		return ce
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &CallError{Kind: KindTransient, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

// PostJSON is DoJSON with the POST method.
func (c *Client) PostJSON(ctx context.Context, url string, payload, out any) error {
	return c.DoJSON(ctx, http.MethodPost, url, payload, out)
}
