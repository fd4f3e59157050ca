// Package adk is an HTTP client for the ADK agent backend: session creation
// plus the streaming run_sse endpoint.
package adk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const runPath = "/run_sse"

// APIError is a non-success response from the agent backend. The raw body is
// captured for diagnostic visibility.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("adk error (status %d %s): %s", e.StatusCode, e.Status, e.Body)
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Client is an HTTP client for the ADK agent backend.
type Client struct {
	baseURL    string
	appName    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a new ADK client. baseURL is the endpoint root, e.g.
// "http://localhost:8000/adk-api".
func NewClient(baseURL, appName string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		appName:    appName,
		userAgent:  "procureflow-assistant/1.0",
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AppName returns the agent application name this client targets.
func (c *Client) AppName() string {
	return c.appName
}

// CreateSession asks the backend for a new session scoped to userID and
// returns the backend-issued session ID.
func (c *Client) CreateSession(ctx context.Context, userID string) (string, error) {
	url := fmt.Sprintf("%s/apps/%s/users/%s/sessions", c.baseURL, c.appName, userID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader("{}"))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(respBody)}
	}

	var session Session
	if err := json.Unmarshal(respBody, &session); err != nil {
		return "", fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.ID == "" {
		return "", fmt.Errorf("backend returned a session without an id")
	}

	return session.ID, nil
}

// Run sends a user message to the streaming run endpoint and returns the raw
// response body. The caller owns the stream and must close it; canceling ctx
// aborts the stream mid-read.
func (c *Client) Run(ctx context.Context, req *RunRequest) (io.ReadCloser, error) {
	if req.AppName == "" {
		req.AppName = c.appName
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+runPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(respBody)}
	}

	return resp.Body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
}
