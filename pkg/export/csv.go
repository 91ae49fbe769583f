package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

type csvWriter struct {
	w *csv.Writer
}

func newCSVWriter(w io.Writer) *csvWriter {
	return &csvWriter{w: csv.NewWriter(w)}
}

func (c *csvWriter) WriteHeader(columns []string) error {
	return c.w.Write(columns)
}

func (c *csvWriter) WriteRow(values []interface{}) error {
	record := make([]string, len(values))
	for i, v := range values {
		record[i] = csvValue(v)
	}
	return c.w.Write(record)
}

func (c *csvWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

func csvValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return formatTime(val)
	default:
		return fmt.Sprint(val)
	}
}
