package models

import "time"

// AxisLimit is the magnitude bound of the fixed-point accelerometer format
const AxisLimit = 2048

// EnvironmentalSample represents one low-rate RS485 reading
type EnvironmentalSample struct {
	ID         int64     `json:"id"`
	TimeLocal  *string   `json:"time_local"`
	IngestedAt time.Time `json:"ingested_at"`
	TempC      float64   `json:"temp_c"`
	HumPct     float64   `json:"hum_pct"`
	WindDirDeg *int      `json:"wind_dir_deg"`
	WindDirTxt *string   `json:"wind_dir_txt"`
	WindSpdMs  *float64  `json:"wind_spd_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Axis is a single 3-axis accelerometer reading
type Axis [3]int

// InRange reports whether all three components are within ±AxisLimit
func (a Axis) InRange() bool {
	for _, v := range a {
		if v < -AxisLimit || v > AxisLimit {
			return false
		}
	}
	return true
}

// VibrationBatch represents a group of high-rate accelerometer readings stored as one unit
type VibrationBatch struct {
	ID           int64     `json:"id"`
	ChunkStartUs int64     `json:"chunk_start_us"`
	FsHz         int       `json:"fs_hz"`
	SampleCount  int       `json:"sample_count"`
	Samples      []Axis    `json:"samples"`
	CreatedAt    time.Time `json:"created_at"`
}

// Latest returns the last reading of the batch
func (b *VibrationBatch) Latest() (Axis, bool) {
	if len(b.Samples) == 0 {
		return Axis{}, false
	}
	return b.Samples[len(b.Samples)-1], true
}

// OutOfRange counts readings with at least one component beyond ±AxisLimit
func (b *VibrationBatch) OutOfRange() int {
	n := 0
	for _, s := range b.Samples {
		if !s.InRange() {
			n++
		}
	}
	return n
}

// Summary returns the batch metadata without raw samples
func (b *VibrationBatch) Summary() VibrationSummary {
	return VibrationSummary{
		ID:           b.ID,
		ChunkStartUs: b.ChunkStartUs,
		FsHz:         b.FsHz,
		SampleCount:  b.SampleCount,
		CreatedAt:    b.CreatedAt,
	}
}

// VibrationSummary is the listing representation of a VibrationBatch
type VibrationSummary struct {
	ID           int64     `json:"id"`
	ChunkStartUs int64     `json:"chunk_start_us"`
	FsHz         int       `json:"fs_hz"`
	SampleCount  int       `json:"sample_count"`
	CreatedAt    time.Time `json:"created_at"`
}
