package api

import (
	"context"
	"fmt"
	"time"

	"github.com/sguter90/sensormaestro/pkg/models"
)

// IngestRequest is the ingest envelope
type IngestRequest struct {
	DeviceID string      `json:"device_id"`
	TS       string      `json:"ts"`
	Type     models.Kind `json:"type"`
	Sample   interface{} `json:"sample"`
}

// RS485Sample is the sample body of an rs485 payload
type RS485Sample struct {
	TempC      float64  `json:"temp_c"`
	HumPct     float64  `json:"hum_pct"`
	WindDirDeg *int     `json:"wind_dir_deg,omitempty"`
	WindDirTxt *string  `json:"wind_dir_txt,omitempty"`
	WindSpdMs  *float64 `json:"wind_spd_ms,omitempty"`
	TimeLocal  *string  `json:"time_local,omitempty"`
}

// ADXLSample is the sample body of an adxl payload
type ADXLSample struct {
	ChunkStartUs int64         `json:"chunk_start_us"`
	FsHz         int           `json:"fs_hz"`
	SampleCount  int           `json:"sample_count"`
	Samples      []models.Axis `json:"samples"`
}

// NewRS485Request wraps an environmental sample into an envelope stamped with ts
func NewRS485Request(deviceID string, ts time.Time, sample RS485Sample) IngestRequest {
	return IngestRequest{
		DeviceID: deviceID,
		TS:       ts.UTC().Format(time.RFC3339Nano),
		Type:     models.KindEnvironmental,
		Sample:   sample,
	}
}

// NewADXLRequest wraps a vibration batch into an envelope stamped with ts
func NewADXLRequest(deviceID string, ts time.Time, sample ADXLSample) IngestRequest {
	return IngestRequest{
		DeviceID: deviceID,
		TS:       ts.UTC().Format(time.RFC3339Nano),
		Type:     models.KindVibration,
		Sample:   sample,
	}
}

// IngestResponse is returned for stored payloads
type IngestResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	DeviceID       string `json:"device_id"`
	Timestamp      string `json:"timestamp"`
	RecordsCreated int    `json:"records_created"`
}

// Ingest submits one payload
func (c *Client) Ingest(ctx context.Context, req IngestRequest) (*IngestResponse, error) {
	return c.IngestRaw(ctx, req)
}

// IngestRaw submits any JSON-encodable body to the ingest endpoint
func (c *Client) IngestRaw(ctx context.Context, body interface{}) (*IngestResponse, error) {
	var result IngestResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(APIKeyHeader, c.apiKey).
		SetBody(body).
		SetResult(&result).
		Post("/ingest")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, newAPIError(resp)
	}
	return &result, nil
}
