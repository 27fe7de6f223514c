package telemetry

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Client is a pooled HTTP client shared by every request a Source issues.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client with the given per-request timeout (0 = none).
func NewClient(timeout time.Duration) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16
	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
	}
}

// NewClientWith wraps an existing *http.Client.
func NewClientWith(hc *http.Client) *Client {
	return &Client{httpClient: hc}
}

// Get fetches url. Transport failures come back as *TransportError. A
// non-200 status is not an error here: the body is discarded and the status
// returned so the caller can classify it.
func (c *Client) Get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, &TransportError{Op: "request", URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json, application/x-protobuf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Op: "get", URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &TransportError{Op: "read", URL: url, Err: err}
	}
	return body, resp.StatusCode, nil
}
