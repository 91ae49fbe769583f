package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/sguter90/sensormaestro/pkg/models"
)

const selectEnvironmental = `
        SELECT id, time_local, ingested_at, temp_c, hum_pct, wind_dir_deg, wind_dir_txt, wind_spd_ms, created_at
        FROM rs485_samples`

// AppendEnvironmental stores an environmental sample and returns its id.
// ID, IngestedAt and CreatedAt of s are set on success.
func (dm *DatabaseManager) AppendEnvironmental(ctx context.Context, s *models.EnvironmentalSample) (int64, error) {
	query := `
        INSERT INTO rs485_samples (time_local, ingested_at, temp_c, hum_pct, wind_dir_deg, wind_dir_txt, wind_spd_ms)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at
    `

	dm.rs485Mu.Lock()
	defer dm.rs485Mu.Unlock()

	ingestedAt := time.Now().UTC()

	var id int64
	var createdAt time.Time
	err := dm.QueryRowWithHealthCheck(ctx, query,
		[]interface{}{nullString(s.TimeLocal), ingestedAt, s.TempC, s.HumPct, nullInt(s.WindDirDeg), nullString(s.WindDirTxt), nullFloat(s.WindSpdMs)},
		&id, &createdAt,
	)
	if err != nil {
		return 0, storageError("failed to insert rs485 sample", err)
	}

	s.ID = id
	s.IngestedAt = ingestedAt
	s.CreatedAt = createdAt
	return id, nil
}

// QueryEnvironmental returns samples within the range, newest first, at most MaxLimit
func (dm *DatabaseManager) QueryEnvironmental(ctx context.Context, q models.RangeQuery) ([]models.EnvironmentalSample, error) {
	samples := []models.EnvironmentalSample{}
	err := dm.EachEnvironmental(ctx, q, q.EffectiveLimit(), q.Offset, func(s models.EnvironmentalSample) error {
		samples = append(samples, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return samples, nil
}

// EachEnvironmental streams samples within the range, newest first, to fn.
// limit <= 0 means unlimited.
func (dm *DatabaseManager) EachEnvironmental(ctx context.Context, q models.RangeQuery, limit int, offset int, fn func(models.EnvironmentalSample) error) error {
	query, args := buildRangeQuery(selectEnvironmental, q, limit, offset)

	rows, err := dm.QueryWithHealthCheck(ctx, query, args...)
	if err != nil {
		return storageError("failed to query rs485 samples", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanEnvironmental(rows)
		if err != nil {
			return storageError("failed to scan rs485 sample", err)
		}
		if err := fn(s); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return storageError("failed to iterate rs485 samples", err)
	}
	return nil
}

// CountEnvironmental returns the exact number of stored samples
func (dm *DatabaseManager) CountEnvironmental(ctx context.Context) (int64, error) {
	return dm.CountEnvironmentalRange(ctx, models.RangeQuery{})
}

// CountEnvironmentalRange returns the number of samples within the range
func (dm *DatabaseManager) CountEnvironmentalRange(ctx context.Context, q models.RangeQuery) (int64, error) {
	whereClause, args, _ := buildRangeWhere(q)

	var count int64
	if err := dm.QueryRowWithHealthCheck(ctx, "SELECT COUNT(*) FROM rs485_samples"+whereClause, args, &count); err != nil {
		return 0, storageError("failed to count rs485 samples", err)
	}
	return count, nil
}

func scanEnvironmental(row rowScanner) (models.EnvironmentalSample, error) {
	var s models.EnvironmentalSample
	var timeLocal, windDirTxt sql.NullString
	var windDirDeg sql.NullInt64
	var windSpdMs sql.NullFloat64

	err := row.Scan(
		&s.ID,
		&timeLocal,
		&s.IngestedAt,
		&s.TempC,
		&s.HumPct,
		&windDirDeg,
		&windDirTxt,
		&windSpdMs,
		&s.CreatedAt,
	)
	if err != nil {
		return s, err
	}

	if timeLocal.Valid {
		s.TimeLocal = &timeLocal.String
	}
	if windDirDeg.Valid {
		deg := int(windDirDeg.Int64)
		s.WindDirDeg = &deg
	}
	if windDirTxt.Valid {
		s.WindDirTxt = &windDirTxt.String
	}
	if windSpdMs.Valid {
		s.WindSpdMs = &windSpdMs.Float64
	}

	return s, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
