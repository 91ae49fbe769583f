package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultLimit is applied to history reads that do not ask for a limit
	DefaultLimit = 200
	// MaxLimit is the hard cap for a single history read
	MaxLimit = 1000
)

// timestampLayouts lists the accepted textual timestamp formats, most specific first
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 style timestamp. Values without zone are treated as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid timestamp: %s", value)
}

// RangeQuery holds the parameters of a history read or export
type RangeQuery struct {
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}

// Validate checks if the query parameters are valid
func (q *RangeQuery) Validate() error {
	if q.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}

	if q.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}

	if q.Start != nil && q.End != nil && q.Start.After(*q.End) {
		return fmt.Errorf("start must not be after end")
	}

	return nil
}

// EffectiveLimit returns the limit clamped to 1..MaxLimit, DefaultLimit when unset
func (q *RangeQuery) EffectiveLimit() int {
	switch {
	case q.Limit <= 0:
		return DefaultLimit
	case q.Limit > MaxLimit:
		return MaxLimit
	default:
		return q.Limit
	}
}
