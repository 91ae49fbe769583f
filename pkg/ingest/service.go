package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sguter90/sensormaestro/pkg/models"
	"github.com/sguter90/sensormaestro/pkg/parser"
	"go.uber.org/zap"
)

// DisplaySamples is the number of trailing readings broadcast with a vibration batch
const DisplaySamples = 500

const (
	cacheQueueSize = 64
	cacheTimeout   = 2 * time.Second
)

// Classifier turns a raw request body into a validated payload
type Classifier interface {
	Classify(raw []byte) (models.Payload, error)
}

// Store persists samples
type Store interface {
	AppendEnvironmental(ctx context.Context, s *models.EnvironmentalSample) (int64, error)
	AppendVibration(ctx context.Context, b *models.VibrationBatch) (int64, error)
}

// Publisher fans events out to viewers without waiting for delivery
type Publisher interface {
	Publish(event models.Event) int
}

// LatestStore remembers the last broadcast payload per kind
type LatestStore interface {
	Set(ctx context.Context, kind models.Kind, data interface{}) error
}

// Recorder receives pipeline statistics
type Recorder interface {
	IngestAccepted(kind string)
	IngestRejected(reason string)
	ObserveIngest(d time.Duration)
}

// Rejection reasons passed to Recorder.IngestRejected
const (
	rejectValidation = "validation"
	rejectStorage    = "storage"
)

type nopRecorder struct{}

func (nopRecorder) IngestAccepted(string) {}
func (nopRecorder) IngestRejected(string) {}
func (nopRecorder) ObserveIngest(time.Duration) {}

// Result describes a stored and broadcast payload
type Result struct {
	Kind      models.Kind
	DeviceID  string
	Timestamp string
	ID        int64
	Event     models.Event
}

type cacheUpdate struct {
	kind models.Kind
	data interface{}
}

// Service runs the classify, persist and broadcast pipeline.
// It is shared by the HTTP and MQTT ingest paths.
// Latest-sample cache writes run on a background writer after the broadcast.
type Service struct {
	classifier Classifier
	store      Store
	publisher  Publisher
	latest     LatestStore
	recorder   Recorder
	logger     *zap.Logger

	mu        sync.RWMutex
	closed    bool
	updates   chan cacheUpdate
	cacheDone chan struct{}
}

// Option configures optional collaborators of a Service
type Option func(*Service)

// WithLatestStore caches every broadcast payload
func WithLatestStore(l LatestStore) Option {
	return func(s *Service) {
		s.latest = l
	}
}

// WithRecorder reports pipeline statistics to r
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// NewService creates a new ingest Service
func NewService(classifier Classifier, store Store, publisher Publisher, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		classifier: classifier,
		store:      store,
		publisher:  publisher,
		recorder:   nopRecorder{},
		logger:     logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.latest != nil {
		s.updates = make(chan cacheUpdate, cacheQueueSize)
		s.cacheDone = make(chan struct{})
		go s.runCache()
	}
	return s
}

// Close flushes pending cache writes and stops the cache writer
func (s *Service) Close() {
	if s.updates == nil {
		return
	}

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.updates)
	}
	s.mu.Unlock()

	<-s.cacheDone
}

func (s *Service) runCache() {
	defer close(s.cacheDone)

	for u := range s.updates {
		ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
		if err := s.latest.Set(ctx, u.kind, u.data); err != nil {
			s.logger.Warn("Failed to cache latest sample", zap.String("kind", string(u.kind)), zap.Error(err))
		}
		cancel()
	}
}

func (s *Service) cacheLatest(kind models.Kind, data interface{}) {
	if s.updates == nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.updates <- cacheUpdate{kind: kind, data: data}:
	default:
		s.logger.Warn("Latest sample cache is behind, dropping update", zap.String("kind", string(kind)))
	}
}

// Ingest validates raw, stores it and broadcasts the stored sample.
// Validation failures are returned as *parser.ValidationError and never reach the store.
// Storage failures are returned wrapped and nothing is broadcast.
func (s *Service) Ingest(ctx context.Context, raw []byte) (*Result, error) {
	start := time.Now()

	payload, err := s.classifier.Classify(raw)
	if err != nil {
		s.recorder.IngestRejected(rejectValidation)
		return nil, err
	}

	var result *Result
	switch p := payload.(type) {
	case *models.EnvironmentalPayload:
		result, err = s.storeEnvironmental(ctx, p)
	case *models.VibrationPayload:
		result, err = s.storeVibration(ctx, p)
	default:
		err = parser.Invalidf("unsupported payload kind: %s", payload.Kind())
	}
	if err != nil {
		var vErr *parser.ValidationError
		if errors.As(err, &vErr) {
			s.recorder.IngestRejected(rejectValidation)
		} else {
			s.recorder.IngestRejected(rejectStorage)
		}
		return nil, err
	}

	s.publisher.Publish(result.Event)
	s.cacheLatest(result.Kind, result.Event.Data)

	s.recorder.IngestAccepted(string(result.Kind))
	s.recorder.ObserveIngest(time.Since(start))

	s.logger.Debug("Sample ingested",
		zap.String("kind", string(result.Kind)),
		zap.String("device_id", result.DeviceID),
		zap.Int64("id", result.ID),
	)

	return result, nil
}

func (s *Service) storeEnvironmental(ctx context.Context, p *models.EnvironmentalPayload) (*Result, error) {
	sample := p.Sample
	id, err := s.store.AppendEnvironmental(ctx, &sample)
	if err != nil {
		return nil, fmt.Errorf("failed to store rs485 sample: %w", err)
	}

	return &Result{
		Kind:      models.KindEnvironmental,
		DeviceID:  p.DeviceID,
		Timestamp: p.TS,
		ID:        id,
		Event: models.Event{
			Name: models.EventRS485Data,
			Data: models.RS485Data{
				DeviceID:  p.DeviceID,
				Timestamp: p.TS,
				Data:      sample,
				ID:        id,
			},
		},
	}, nil
}

func (s *Service) storeVibration(ctx context.Context, p *models.VibrationPayload) (*Result, error) {
	batch := p.Batch
	if batch.SampleCount != len(batch.Samples) {
		return nil, parser.Invalidf("sample_count %d does not match number of samples %d", batch.SampleCount, len(batch.Samples))
	}

	id, err := s.store.AppendVibration(ctx, &batch)
	if err != nil {
		return nil, fmt.Errorf("failed to store adxl batch: %w", err)
	}

	return &Result{
		Kind:      models.KindVibration,
		DeviceID:  p.DeviceID,
		Timestamp: p.TS,
		ID:        id,
		Event: models.Event{
			Name: models.EventADXLData,
			Data: VibrationEvent(p.DeviceID, &batch),
		},
	}, nil
}

// VibrationEvent builds the broadcast view of a stored batch. Samples are cut to
// the last DisplaySamples readings; the adxl axes come from the last reading.
func VibrationEvent(deviceID string, b *models.VibrationBatch) models.ADXLData {
	samples := b.Samples
	if len(samples) > DisplaySamples {
		samples = samples[len(samples)-DisplaySamples:]
	}
	if samples == nil {
		samples = []models.Axis{}
	}

	data := models.ADXLData{
		DeviceID:     deviceID,
		ChunkStartUs: b.ChunkStartUs,
		FsHz:         b.FsHz,
		SampleCount:  b.SampleCount,
		Samples:      samples,
		ID:           b.ID,
		OutOfRange:   b.OutOfRange(),
	}

	if last, ok := b.Latest(); ok {
		x, y, z := last[0], last[1], last[2]
		data.ADXL1, data.ADXL2, data.ADXL3 = &x, &y, &z
	}
	return data
}
