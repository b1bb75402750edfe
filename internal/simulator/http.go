package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/okian/courtside/internal/adapters/http/api"
)

// StatusError is a non-expected response from the service.
type StatusError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Message)
}

// Temporary reports whether the request may succeed if retried.
func (e *StatusError) Temporary() bool {
	return e.Status == http.StatusServiceUnavailable
}

// HTTPClient talks JSON to the service on behalf of simulated users.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	secret  string
	retries atomic.Int64
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration, secret string) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		secret:  secret,
	}
}

// Retries reports how many requests were re-sent after a 503.
func (c *HTTPClient) Retries() int { return int(c.retries.Load()) }

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// call sends body as userID and decodes a response with status want into
// out. 503 answers are retried with exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method, path, userID string, header http.Header, body, out any, want int) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = b
	}

	attempt := 0
	op := func() error {
		if attempt > 0 {
			c.retries.Add(1)
		}
		attempt++
		err := c.once(ctx, method, path, userID, header, payload, out, want)
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, MaxRetries), ctx))
}

func (c *HTTPClient) once(ctx context.Context, method, path, userID string, header http.Header, payload []byte, out any, want int) error {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" && userID != "" {
		token, err := api.IssueToken(c.secret, userID, tokenTTL)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to sign token: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	data, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode != want {
		se := &StatusError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, se)
		return fmt.Errorf("%s %s: %w", method, path, se)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return backoff.Permanent(fmt.Errorf("%s %s: decode: %w", method, path, err))
	}
	return nil
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
