package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIKeyHeader carries the shared ingest key
const APIKeyHeader = "X-API-Key"

// Client represents a SensorMaestro API client
type Client struct {
	http   *resty.Client
	apiKey string
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a new API client
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		http: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("Accept", "application/json"),
	}

	for _, opt := range opts {
		opt(c)
	}
	c.http.SetBaseURL(strings.TrimSuffix(baseURL, "/"))

	return c
}

// WithTimeout sets a custom timeout for the HTTP client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetTimeout(timeout)
	}
}

// WithAPIKey sets the key sent with ingest requests
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.http = resty.NewWithClient(httpClient).
			SetHeader("Accept", "application/json")
	}
}

// APIError is returned for responses with status >= 400
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func newAPIError(resp *resty.Response) *APIError {
	return newAPIErrorFromBody(resp.StatusCode(), resp.Body())
}

func newAPIErrorFromBody(status int, raw []byte) *APIError {
	msg := strings.TrimSpace(string(raw))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		msg = body.Message
	}
	return &APIError{StatusCode: status, Message: msg}
}

// get performs a GET request and decodes a successful response into result
func (c *Client) get(ctx context.Context, path string, query map[string]string, result interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(result).
		Get(path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return newAPIError(resp)
	}
	return nil
}
