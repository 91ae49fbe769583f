package api

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sguter90/sensormaestro/pkg/models"
)

// RangeParams selects a time range of history rows
type RangeParams struct {
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}

func (p RangeParams) query() map[string]string {
	q := map[string]string{}
	if p.Start != nil {
		q["start"] = p.Start.UTC().Format(time.RFC3339)
	}
	if p.End != nil {
		q["end"] = p.End.UTC().Format(time.RFC3339)
	}
	if p.Limit > 0 {
		q["limit"] = strconv.Itoa(p.Limit)
	}
	if p.Offset > 0 {
		q["offset"] = strconv.Itoa(p.Offset)
	}
	return q
}

type environmentalItems struct {
	Items []models.EnvironmentalSample `json:"items"`
}

type vibrationItems struct {
	Items []models.VibrationSummary `json:"items"`
}

// QueryEnvironmental returns stored rs485 samples, newest first
func (c *Client) QueryEnvironmental(ctx context.Context, params RangeParams) ([]models.EnvironmentalSample, error) {
	var out environmentalItems
	if err := c.get(ctx, "/api/db/rs485", params.query(), &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// QueryVibration returns stored adxl batches without samples, newest first
func (c *Client) QueryVibration(ctx context.Context, params RangeParams) ([]models.VibrationSummary, error) {
	var out vibrationItems
	if err := c.get(ctx, "/api/db/adxl", params.query(), &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetVibration returns one adxl batch including its samples
func (c *Client) GetVibration(ctx context.Context, id int64) (*models.VibrationBatch, error) {
	var batch models.VibrationBatch
	if err := c.get(ctx, fmt.Sprintf("/api/db/adxl/%d", id), nil, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// Export streams an export file of kind in format to w and returns the bytes written
func (c *Client) Export(ctx context.Context, kind, format string, params RangeParams, w io.Writer) (int64, error) {
	q := params.query()
	delete(q, "limit")
	delete(q, "offset")

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(q).
		SetDoNotParseResponse(true).
		Get(fmt.Sprintf("/api/export/%s.%s", kind, format))
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}

	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 400 {
		raw, _ := io.ReadAll(body)
		return 0, newAPIErrorFromBody(resp.StatusCode(), raw)
	}

	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("failed to download export: %w", err)
	}
	return n, nil
}
