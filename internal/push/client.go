// Package push is the HTTP client for the delivery transport; the external
// service that actually lands notifications on devices.
//
// Rejections come in two flavors the rest of the pipeline must tell apart:
// ErrRejected (the endpoint is invalid or explicitly unsubscribed, a
// permanent condition) versus transient transport failures (timeouts, 5xx),
// which surface as ordinary errors.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrRejected signals the transport explicitly refused the endpoint.
// Permanent: the subscription should be deactivated, never retried.
var ErrRejected = errors.New("push endpoint rejected")

// Message is one notification as the transport accepts it.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// EndpointStatus is the transport's view of one endpoint. Deliverable is nil
// while the transport has no definitive answer yet ("still initializing").
type EndpointStatus struct {
	Deliverable *bool `json:"deliverable"`
	Invalid     bool  `json:"invalid"`
}

// Client talks to the delivery transport.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// NewClient creates a transport client.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// Register announces a new endpoint to the transport.
func (c *Client) Register(ctx context.Context, endpointID string) (EndpointStatus, error) {
	var status EndpointStatus
	err := c.post(ctx, "/register", map[string]string{"endpointId": endpointID}, &status)
	if err != nil {
		return EndpointStatus{}, fmt.Errorf("register endpoint: %w", err)
	}
	return status, nil
}

// Status asks the transport whether an endpoint is still deliverable.
func (c *Client) Status(ctx context.Context, endpointID string) (EndpointStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/status?endpointId="+endpointID, nil)
	if err != nil {
		return EndpointStatus{}, fmt.Errorf("create request: %w", err)
	}
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return EndpointStatus{}, fmt.Errorf("status %s: %w", endpointID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return EndpointStatus{}, fmt.Errorf("read status body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return EndpointStatus{}, fmt.Errorf("transport status returned %d: %s",
			resp.StatusCode, truncate(body, 200))
	}

	var status EndpointStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return EndpointStatus{}, fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}

// Send delivers one message to one endpoint. A 4xx from the transport means
// the endpoint itself was refused and maps to ErrRejected.
func (c *Client) Send(ctx context.Context, endpointID string, msg Message) error {
	payload := struct {
		EndpointID string  `json:"endpointId"`
		Message    Message `json:"message"`
	}{endpointID, msg}

	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode send payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send to %s: %w", endpointID, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("endpoint %s: %s: %w", endpointID, truncate(body, 200), ErrRejected)
	default:
		return fmt.Errorf("transport send returned %d: %s", resp.StatusCode, truncate(body, 200))
	}
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transport %s returned %d: %s", path, resp.StatusCode, truncate(body, 200))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func (c *Client) auth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
