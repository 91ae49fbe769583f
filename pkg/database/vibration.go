package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sguter90/sensormaestro/pkg/models"
)

const selectVibrationSummary = `
        SELECT id, chunk_start_us, fs_hz, sample_count, created_at
        FROM adxl_batches`

// AppendVibration stores a batch as a single row and returns its id.
// ID and CreatedAt of b are set on success.
func (dm *DatabaseManager) AppendVibration(ctx context.Context, b *models.VibrationBatch) (int64, error) {
	if b.SampleCount != len(b.Samples) {
		return 0, fmt.Errorf("sample_count %d does not match number of samples %d", b.SampleCount, len(b.Samples))
	}

	samples := b.Samples
	if samples == nil {
		samples = []models.Axis{}
	}
	samplesJSON, err := json.Marshal(samples)
	if err != nil {
		return 0, fmt.Errorf("failed to encode samples: %w", err)
	}

	query := `
        INSERT INTO adxl_batches (chunk_start_us, fs_hz, sample_count, samples)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `

	dm.adxlMu.Lock()
	defer dm.adxlMu.Unlock()

	var id int64
	var createdAt time.Time
	err = dm.QueryRowWithHealthCheck(ctx, query,
		[]interface{}{b.ChunkStartUs, b.FsHz, b.SampleCount, string(samplesJSON)},
		&id, &createdAt,
	)
	if err != nil {
		return 0, storageError("failed to insert adxl batch", err)
	}

	b.ID = id
	b.CreatedAt = createdAt
	return id, nil
}

// GetVibration returns a single batch including its samples
func (dm *DatabaseManager) GetVibration(ctx context.Context, id int64) (*models.VibrationBatch, error) {
	query := `
        SELECT id, chunk_start_us, fs_hz, sample_count, samples, created_at
        FROM adxl_batches
        WHERE id = $1
    `

	var b models.VibrationBatch
	var samplesJSON []byte
	err := dm.QueryRowWithHealthCheck(ctx, query, []interface{}{id},
		&b.ID, &b.ChunkStartUs, &b.FsHz, &b.SampleCount, &samplesJSON, &b.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageError("failed to get adxl batch", err)
	}

	if err := json.Unmarshal(samplesJSON, &b.Samples); err != nil {
		return nil, fmt.Errorf("failed to decode samples of batch %d: %w", id, err)
	}

	return &b, nil
}

// QueryVibration returns batch summaries within the range, newest first, at most MaxLimit
func (dm *DatabaseManager) QueryVibration(ctx context.Context, q models.RangeQuery) ([]models.VibrationSummary, error) {
	batches := []models.VibrationSummary{}
	err := dm.EachVibration(ctx, q, q.EffectiveLimit(), q.Offset, func(b models.VibrationSummary) error {
		batches = append(batches, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// EachVibration streams batch summaries within the range, newest first, to fn.
// limit <= 0 means unlimited.
func (dm *DatabaseManager) EachVibration(ctx context.Context, q models.RangeQuery, limit int, offset int, fn func(models.VibrationSummary) error) error {
	query, args := buildRangeQuery(selectVibrationSummary, q, limit, offset)

	rows, err := dm.QueryWithHealthCheck(ctx, query, args...)
	if err != nil {
		return storageError("failed to query adxl batches", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b models.VibrationSummary
		if err := rows.Scan(&b.ID, &b.ChunkStartUs, &b.FsHz, &b.SampleCount, &b.CreatedAt); err != nil {
			return storageError("failed to scan adxl batch", err)
		}
		if err := fn(b); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return storageError("failed to iterate adxl batches", err)
	}
	return nil
}

// CountVibration returns the exact number of stored batches
func (dm *DatabaseManager) CountVibration(ctx context.Context) (int64, error) {
	return dm.CountVibrationRange(ctx, models.RangeQuery{})
}

// CountVibrationRange returns the number of batches within the range
func (dm *DatabaseManager) CountVibrationRange(ctx context.Context, q models.RangeQuery) (int64, error) {
	whereClause, args, _ := buildRangeWhere(q)

	var count int64
	if err := dm.QueryRowWithHealthCheck(ctx, "SELECT COUNT(*) FROM adxl_batches"+whereClause, args, &count); err != nil {
		return 0, storageError("failed to count adxl batches", err)
	}
	return count, nil
}
