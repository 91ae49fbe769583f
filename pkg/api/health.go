package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sguter90/sensormaestro/pkg/metrics"
)

// HealthStatus represents the API health status
type HealthStatus struct {
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	RS485Count int64     `json:"rs485_count"`
	ADXLCount  int64     `json:"adxl_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// Healthy reports whether the server and its store are up
func (h *HealthStatus) Healthy() bool {
	return h.Status == "ok"
}

// Health returns the server health. A degraded server yields a status, not an error.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/health")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusServiceUnavailable {
		return nil, newAPIError(resp)
	}

	var health HealthStatus
	if err := json.Unmarshal(resp.Body(), &health); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &health, nil
}

// Metrics returns the server's pipeline counters and process stats
func (c *Client) Metrics(ctx context.Context) (*metrics.Snapshot, error) {
	var snapshot metrics.Snapshot
	if err := c.get(ctx, "/api/metrics", nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}
