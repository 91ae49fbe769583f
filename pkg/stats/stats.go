package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/sguter90/sensormaestro/pkg/models"
)

// Counter is the part of the store the aggregator reads from
type Counter interface {
	CountEnvironmental(ctx context.Context) (int64, error)
	CountVibration(ctx context.Context) (int64, error)
}

// Aggregator computes row count snapshots on demand.
// Nothing is cached; every snapshot hits the store.
type Aggregator struct {
	counter Counter
	now     func() time.Time
}

// NewAggregator creates a new Aggregator
func NewAggregator(counter Counter) *Aggregator {
	return &Aggregator{
		counter: counter,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot returns the current counts of both sample tables
func (a *Aggregator) Snapshot(ctx context.Context) (models.Stats, error) {
	rs485, err := a.counter.CountEnvironmental(ctx)
	if err != nil {
		return models.Stats{}, fmt.Errorf("failed to count rs485 samples: %w", err)
	}

	adxl, err := a.counter.CountVibration(ctx)
	if err != nil {
		return models.Stats{}, fmt.Errorf("failed to count adxl batches: %w", err)
	}

	return models.Stats{
		RS485Count: rs485,
		ADXLCount:  adxl,
		Timestamp:  a.now(),
	}, nil
}

// Event wraps a fresh snapshot as a stats_update event
func (a *Aggregator) Event(ctx context.Context) (models.Event, error) {
	s, err := a.Snapshot(ctx)
	if err != nil {
		return models.Event{}, err
	}
	return models.Event{Name: models.EventStatsUpdate, Data: s}, nil
}
