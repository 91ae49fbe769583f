package main

import (
	"context"
	"errors"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sguter90/sensormaestro/pkg/config"
	"github.com/sguter90/sensormaestro/pkg/database"
	"github.com/sguter90/sensormaestro/pkg/hub"
	"github.com/sguter90/sensormaestro/pkg/ingest"
	"github.com/sguter90/sensormaestro/pkg/metrics"
	"github.com/sguter90/sensormaestro/pkg/models"
	"go.uber.org/zap"
)

const testAPIKey = "test-key"

// memoryStore is an in-memory SampleStore
type memoryStore struct {
	mu      sync.Mutex
	nextID  int64
	env     []models.EnvironmentalSample
	vib     []models.VibrationBatch
	pingErr error
}

func (s *memoryStore) AppendEnvironmental(ctx context.Context, sample *models.EnvironmentalSample) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sample.ID = s.nextID
	sample.CreatedAt = time.Now().UTC()
	s.env = append(s.env, *sample)
	return sample.ID, nil
}

func (s *memoryStore) AppendVibration(ctx context.Context, b *models.VibrationBatch) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	b.ID = s.nextID
	b.CreatedAt = time.Now().UTC()
	s.vib = append(s.vib, *b)
	return b.ID, nil
}

func (s *memoryStore) Ping(ctx context.Context) error {
	return s.pingErr
}

func (s *memoryStore) CountEnvironmental(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.env)), nil
}

func (s *memoryStore) CountVibration(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.vib)), nil
}

func (s *memoryStore) CountEnvironmentalRange(ctx context.Context, q models.RangeQuery) (int64, error) {
	return s.CountEnvironmental(ctx)
}

func (s *memoryStore) CountVibrationRange(ctx context.Context, q models.RangeQuery) (int64, error) {
	return s.CountVibration(ctx)
}

func (s *memoryStore) QueryEnvironmental(ctx context.Context, q models.RangeQuery) ([]models.EnvironmentalSample, error) {
	var items []models.EnvironmentalSample
	err := s.EachEnvironmental(ctx, q, q.EffectiveLimit(), q.Offset, func(e models.EnvironmentalSample) error {
		items = append(items, e)
		return nil
	})
	return items, err
}

func (s *memoryStore) QueryVibration(ctx context.Context, q models.RangeQuery) ([]models.VibrationSummary, error) {
	var items []models.VibrationSummary
	err := s.EachVibration(ctx, q, q.EffectiveLimit(), q.Offset, func(v models.VibrationSummary) error {
		items = append(items, v)
		return nil
	})
	return items, err
}

func (s *memoryStore) GetVibration(ctx context.Context, id int64) (*models.VibrationBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.vib {
		if b.ID == id {
			b := b
			return &b, nil
		}
	}
	return nil, database.ErrNotFound
}

// EachEnvironmental visits samples newest first; limit 0 means no limit
func (s *memoryStore) EachEnvironmental(ctx context.Context, q models.RangeQuery, limit int, offset int, fn func(models.EnvironmentalSample) error) error {
	s.mu.Lock()
	rows := append([]models.EnvironmentalSample(nil), s.env...)
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	for i, row := range rows {
		if i < offset {
			continue
		}
		if limit > 0 && i >= offset+limit {
			break
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *memoryStore) EachVibration(ctx context.Context, q models.RangeQuery, limit int, offset int, fn func(models.VibrationSummary) error) error {
	s.mu.Lock()
	rows := append([]models.VibrationBatch(nil), s.vib...)
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	for i, row := range rows {
		if i < offset {
			continue
		}
		if limit > 0 && i >= offset+limit {
			break
		}
		if err := fn(row.Summary()); err != nil {
			return err
		}
	}
	return nil
}

// chanConn is a hub connection that hands delivered events to the test
type chanConn struct {
	id     string
	events chan models.Event
}

func newChanConn(id string) *chanConn {
	return &chanConn{id: id, events: make(chan models.Event, 16)}
}

func (c *chanConn) ID() string {
	return c.id
}

func (c *chanConn) Write(ctx context.Context, event models.Event) error {
	select {
	case c.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *chanConn) Close() error {
	return nil
}

func (c *chanConn) next(t *testing.T) models.Event {
	t.Helper()
	select {
	case event := <-c.events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return models.Event{}
	}
}

func (c *chanConn) expectNone(t *testing.T) {
	t.Helper()
	select {
	case event := <-c.events:
		t.Fatalf("unexpected event %q", event.Name)
	case <-time.After(100 * time.Millisecond):
	}
}

type testServer struct {
	*httptest.Server
	store   *memoryStore
	hub     *hub.Hub
	metrics *metrics.Metrics
}

type serverOption func(*config.Config, *Dependencies)

func withLatest(l LatestReader) serverOption {
	return func(cfg *config.Config, deps *Dependencies) {
		deps.Latest = l
	}
}

func withExportMaxRows(n int) serverOption {
	return func(cfg *config.Config, deps *Dependencies) {
		cfg.ExportMaxRows = n
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	cfg := &config.Config{
		APIKey:         testAPIKey,
		AllowedOrigins: []string{"http://localhost:5173"},
	}
	store := &memoryStore{}
	m := metrics.New()
	h := hub.New(hub.Options{Recorder: m})
	log := zap.NewNop()

	deps := Dependencies{
		Config:  cfg,
		Store:   store,
		Hub:     h,
		Metrics: m,
		Logger:  log,
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}
	deps.Ingest = ingest.NewService(newClassifier(), store, h, log, ingest.WithRecorder(m))

	rm := NewRouteManager(deps)
	rm.Setup()

	srv := httptest.NewServer(rm.Router)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})

	return &testServer{Server: srv, store: store, hub: h, metrics: m}
}

var errUnreachable = errors.New("connection refused")
