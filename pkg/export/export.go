package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sguter90/sensormaestro/pkg/models"
)

// DefaultMaxRows bounds a single export unless configured otherwise
const DefaultMaxRows = 100000

var (
	// ErrExportTooLarge is returned when the requested range holds more rows than allowed
	ErrExportTooLarge = errors.New("export too large")
	// ErrUnknownKind is returned for sample kinds that cannot be exported
	ErrUnknownKind = errors.New("unknown export kind")
	// ErrUnknownFormat is returned for unsupported file formats
	ErrUnknownFormat = errors.New("unknown export format")
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var (
	environmentalColumns = []string{"id", "time_local", "temp_c", "hum_pct", "wind_dir_deg", "wind_dir_txt", "wind_spd_ms", "created_at"}
	vibrationColumns     = []string{"id", "chunk_start_us", "fs_hz", "sample_count", "created_at"}
)

// Store is the part of the sample store used for exports
type Store interface {
	CountEnvironmentalRange(ctx context.Context, q models.RangeQuery) (int64, error)
	CountVibrationRange(ctx context.Context, q models.RangeQuery) (int64, error)
	EachEnvironmental(ctx context.Context, q models.RangeQuery, limit int, offset int, fn func(models.EnvironmentalSample) error) error
	EachVibration(ctx context.Context, q models.RangeQuery, limit int, offset int, fn func(models.VibrationSummary) error) error
}

// rowWriter is implemented by each file format
type rowWriter interface {
	WriteHeader(columns []string) error
	WriteRow(values []interface{}) error
	Flush() error
}

// Exporter streams sample ranges as downloadable files
type Exporter struct {
	store   Store
	maxRows int64
}

// NewExporter creates a new Exporter. maxRows <= 0 uses DefaultMaxRows.
func NewExporter(store Store, maxRows int) *Exporter {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Exporter{store: store, maxRows: int64(maxRows)}
}

// ParseKind validates an export kind
func ParseKind(s string) (models.Kind, error) {
	switch models.Kind(s) {
	case models.KindEnvironmental, models.KindVibration:
		return models.Kind(s), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKind, s)
}

// ParseFormat validates an export format
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatXLSX:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, s)
}

// ContentType returns the MIME type of the format
func ContentType(format Format) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns the attachment name of an export
func Filename(kind models.Kind, format Format) string {
	return fmt.Sprintf("%s.%s", kind, format)
}

// Check counts the rows of the range and rejects ranges above the row limit.
// Limit and offset of q are ignored.
func (e *Exporter) Check(ctx context.Context, kind models.Kind, q models.RangeQuery) (int64, error) {
	var (
		count int64
		err   error
	)

	switch kind {
	case models.KindEnvironmental:
		count, err = e.store.CountEnvironmentalRange(ctx, q)
	case models.KindVibration:
		count, err = e.store.CountVibrationRange(ctx, q)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count %s rows: %w", kind, err)
	}

	if count > e.maxRows {
		return count, fmt.Errorf("%w: %d rows exceed the limit of %d", ErrExportTooLarge, count, e.maxRows)
	}
	return count, nil
}

// Write streams the rows of the range to w and returns the number of rows written.
// Callers should run Check first so oversized exports fail before any bytes are sent.
// Rows committed after Check never push the export past the row limit.
func (e *Exporter) Write(ctx context.Context, w io.Writer, kind models.Kind, format Format, q models.RangeQuery) (int64, error) {
	var rw rowWriter
	switch format {
	case FormatCSV:
		rw = newCSVWriter(w)
	case FormatXLSX:
		xw, err := newXLSXWriter(w)
		if err != nil {
			return 0, err
		}
		defer xw.release()
		rw = xw
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	var rows int64
	var err error
	switch kind {
	case models.KindEnvironmental:
		if err = rw.WriteHeader(environmentalColumns); err != nil {
			return 0, err
		}
		err = e.store.EachEnvironmental(ctx, q, int(e.maxRows), 0, func(s models.EnvironmentalSample) error {
			rows++
			return rw.WriteRow(environmentalRow(s))
		})
	case models.KindVibration:
		if err = rw.WriteHeader(vibrationColumns); err != nil {
			return 0, err
		}
		err = e.store.EachVibration(ctx, q, int(e.maxRows), 0, func(s models.VibrationSummary) error {
			rows++
			return rw.WriteRow(vibrationRow(s))
		})
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if err != nil {
		return rows, fmt.Errorf("failed to export %s rows: %w", kind, err)
	}

	if err := rw.Flush(); err != nil {
		return rows, fmt.Errorf("failed to finish %s export: %w", format, err)
	}
	return rows, nil
}

func environmentalRow(s models.EnvironmentalSample) []interface{} {
	return []interface{}{
		s.ID,
		deref(s.TimeLocal),
		s.TempC,
		s.HumPct,
		deref(s.WindDirDeg),
		deref(s.WindDirTxt),
		deref(s.WindSpdMs),
		s.CreatedAt.UTC(),
	}
}

func vibrationRow(s models.VibrationSummary) []interface{} {
	return []interface{}{
		s.ID,
		s.ChunkStartUs,
		s.FsHz,
		s.SampleCount,
		s.CreatedAt.UTC(),
	}
}

// deref turns nil pointers into empty cells
func deref[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
