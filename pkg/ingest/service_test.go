package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sguter90/sensormaestro/pkg/models"
	"github.com/sguter90/sensormaestro/pkg/parser"
	"github.com/sguter90/sensormaestro/pkg/parser/adxl"
	"github.com/sguter90/sensormaestro/pkg/parser/rs485"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStorage = errors.New("storage unavailable")

type memoryStore struct {
	mu     sync.Mutex
	env    []models.EnvironmentalSample
	vib    []models.VibrationBatch
	nextID int64
	err    error
}

func (m *memoryStore) AppendEnvironmental(_ context.Context, s *models.EnvironmentalSample) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.nextID++
	s.ID = m.nextID
	m.env = append(m.env, *s)
	return s.ID, nil
}

func (m *memoryStore) AppendVibration(_ context.Context, b *models.VibrationBatch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.nextID++
	b.ID = m.nextID
	m.vib = append(m.vib, *b)
	return b.ID, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *recordingPublisher) Publish(event models.Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return 1
}

type fakeLatest struct {
	mu    sync.Mutex
	kinds []models.Kind
	err   error
}

func (f *fakeLatest) Set(_ context.Context, kind models.Kind, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	return f.err
}

// blockingLatest holds every Set until release is closed
type blockingLatest struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingLatest) Set(ctx context.Context, _ models.Kind, _ interface{}) error {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakeRecorder struct {
	accepted map[string]int
	rejected map[string]int
	observed int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{accepted: map[string]int{}, rejected: map[string]int{}}
}

func (r *fakeRecorder) IngestAccepted(kind string)   { r.accepted[kind]++ }
func (r *fakeRecorder) IngestRejected(reason string) { r.rejected[reason]++ }
func (r *fakeRecorder) ObserveIngest(time.Duration)  { r.observed++ }

func newClassifier() *parser.Registry {
	registry := parser.NewRegistry()
	registry.Register(rs485.New())
	registry.Register(adxl.New())
	return registry
}

func newTestService(store *memoryStore, opts ...Option) (*Service, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewService(newClassifier(), store, pub, nil, opts...), pub
}

const rs485Body = `{"device_id":"raspi-01","ts":"2026-01-28T08:00:00Z","type":"rs485","sample":{"temp_c":25.5,"hum_pct":60}}`

func TestIngest_Environmental(t *testing.T) {
	store := &memoryStore{}
	latest := &fakeLatest{}
	rec := newFakeRecorder()
	svc, pub := newTestService(store, WithLatestStore(latest), WithRecorder(rec))

	result, err := svc.Ingest(context.Background(), []byte(rs485Body))
	require.NoError(t, err)
	svc.Close()

	assert.Equal(t, models.KindEnvironmental, result.Kind)
	assert.Equal(t, "raspi-01", result.DeviceID)
	assert.Equal(t, "2026-01-28T08:00:00Z", result.Timestamp)
	assert.Equal(t, int64(1), result.ID)

	require.Len(t, store.env, 1)
	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventRS485Data, pub.events[0].Name)

	data, ok := pub.events[0].Data.(models.RS485Data)
	require.True(t, ok)
	assert.Equal(t, 25.5, data.Data.TempC)
	assert.Equal(t, int64(1), data.ID)
	assert.Equal(t, int64(1), data.Data.ID)

	assert.Equal(t, []models.Kind{models.KindEnvironmental}, latest.kinds)
	assert.Equal(t, 1, rec.accepted["rs485"])
	assert.Equal(t, 1, rec.observed)
}

func TestIngest_Vibration(t *testing.T) {
	store := &memoryStore{}
	svc, pub := newTestService(store)

	body := `{"device_id":"raspi-01","ts":"2026-01-28T08:00:00Z","type":"adxl","sample":{"chunk_start_us":1000,"fs_hz":500,"sample_count":3,"samples":[[1,2,3],[4,5,6],[7,8,3000]]}}`
	result, err := svc.Ingest(context.Background(), []byte(body))
	require.NoError(t, err)
	assert.Equal(t, models.KindVibration, result.Kind)

	require.Len(t, store.vib, 1)
	require.Len(t, pub.events, 1)

	data, ok := pub.events[0].Data.(models.ADXLData)
	require.True(t, ok)
	assert.Equal(t, 3, data.SampleCount)
	assert.Len(t, data.Samples, 3)
	require.NotNil(t, data.ADXL1)
	assert.Equal(t, 7, *data.ADXL1)
	assert.Equal(t, 8, *data.ADXL2)
	assert.Equal(t, 3000, *data.ADXL3)
	assert.Equal(t, 1, data.OutOfRange)
	assert.Equal(t, result.ID, data.ID)
}

func TestIngest_SampleCountMismatchRejected(t *testing.T) {
	store := &memoryStore{}
	rec := newFakeRecorder()
	svc, pub := newTestService(store, WithRecorder(rec))

	body := `{"device_id":"raspi-01","ts":"2026-01-28T08:00:00Z","type":"adxl","sample":{"chunk_start_us":0,"fs_hz":500,"sample_count":5,"samples":[[1,2,3],[4,5,6],[7,8,9]]}}`
	_, err := svc.Ingest(context.Background(), []byte(body))

	var vErr *parser.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Empty(t, store.vib)
	assert.Empty(t, pub.events)
	assert.Equal(t, 1, rec.rejected["validation"])
}

func TestIngest_ValidationErrorsNeverReachStore(t *testing.T) {
	bodies := []string{
		`not json`,
		`{"ts":"2026-01-28T08:00:00Z","type":"rs485","sample":{"temp_c":1,"hum_pct":1}}`,
		`{"device_id":"d","ts":"2026-01-28T08:00:00Z","type":"lidar","sample":{}}`,
		`{"device_id":"d","ts":"2026-01-28T08:00:00Z","type":"rs485","sample":{"temp_c":"warm","hum_pct":1}}`,
	}

	for i, body := range bodies {
		t.Run(fmt.Sprintf("body_%d", i), func(t *testing.T) {
			store := &memoryStore{}
			svc, pub := newTestService(store)

			_, err := svc.Ingest(context.Background(), []byte(body))

			var vErr *parser.ValidationError
			assert.ErrorAs(t, err, &vErr)
			assert.Empty(t, store.env)
			assert.Empty(t, pub.events)
		})
	}
}

func TestIngest_StorageErrorSkipsBroadcast(t *testing.T) {
	store := &memoryStore{err: errStorage}
	latest := &fakeLatest{}
	rec := newFakeRecorder()
	svc, pub := newTestService(store, WithLatestStore(latest), WithRecorder(rec))

	_, err := svc.Ingest(context.Background(), []byte(rs485Body))
	svc.Close()

	assert.ErrorIs(t, err, errStorage)
	var vErr *parser.ValidationError
	assert.False(t, errors.As(err, &vErr))
	assert.Empty(t, pub.events)
	assert.Empty(t, latest.kinds)
	assert.Equal(t, 1, rec.rejected["storage"])
}

func TestIngest_CacheFailureDoesNotFailIngest(t *testing.T) {
	store := &memoryStore{}
	latest := &fakeLatest{err: errors.New("redis down")}
	svc, pub := newTestService(store, WithLatestStore(latest))

	_, err := svc.Ingest(context.Background(), []byte(rs485Body))
	require.NoError(t, err)
	svc.Close()
	assert.Len(t, pub.events, 1)
	assert.Len(t, latest.kinds, 1)
}

func TestIngest_SlowCacheDoesNotDelayBroadcast(t *testing.T) {
	store := &memoryStore{}
	latest := &blockingLatest{started: make(chan struct{}), release: make(chan struct{})}
	svc, pub := newTestService(store, WithLatestStore(latest))

	done := make(chan error, 1)
	go func() {
		_, err := svc.Ingest(context.Background(), []byte(rs485Body))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ingest waited for the cache")
	}

	pub.mu.Lock()
	assert.Len(t, pub.events, 1)
	pub.mu.Unlock()

	<-latest.started
	close(latest.release)
	svc.Close()
}

func TestIngest_CloseIsIdempotent(t *testing.T) {
	svc, _ := newTestService(&memoryStore{}, WithLatestStore(&fakeLatest{}))
	svc.Close()
	svc.Close()

	_, err := svc.Ingest(context.Background(), []byte(rs485Body))
	require.NoError(t, err)
}

func TestIngest_ConcurrentIDsUnique(t *testing.T) {
	store := &memoryStore{}
	svc, _ := newTestService(store)

	const writers = 20
	ids := make(chan int64, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Ingest(context.Background(), []byte(rs485Body))
			if assert.NoError(t, err) {
				ids <- result.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, writers)
}

func TestVibrationEvent_TruncatesDisplaySamples(t *testing.T) {
	samples := make([]models.Axis, DisplaySamples+250)
	for i := range samples {
		samples[i] = models.Axis{i, i, i}
	}
	batch := &models.VibrationBatch{ID: 9, FsHz: 500, SampleCount: len(samples), Samples: samples}

	data := VibrationEvent("dev", batch)

	require.Len(t, data.Samples, DisplaySamples)
	assert.Equal(t, models.Axis{250, 250, 250}, data.Samples[0])
	assert.Equal(t, len(samples), data.SampleCount)
	assert.Equal(t, len(samples)-1, *data.ADXL1)
}

func TestVibrationEvent_EmptyBatch(t *testing.T) {
	data := VibrationEvent("dev", &models.VibrationBatch{FsHz: 500})

	assert.NotNil(t, data.Samples)
	assert.Empty(t, data.Samples)
	assert.Nil(t, data.ADXL1)
	assert.Nil(t, data.ADXL2)
	assert.Nil(t, data.ADXL3)
	assert.Zero(t, data.OutOfRange)
}

func TestIngest_LegacyBatchShape(t *testing.T) {
	store := &memoryStore{}
	svc, pub := newTestService(store)

	body := `{"device_id":"raspi-01","ts":"2026-01-28T08:00:00Z","type":"adxl_batch","chunk_start_us":10,"samples":[[1,1,1]]}`
	_, err := svc.Ingest(context.Background(), []byte(body))
	require.NoError(t, err)

	require.Len(t, store.vib, 1)
	assert.Equal(t, adxl.LegacyDefaultFsHz, store.vib[0].FsHz)
	assert.True(t, strings.HasPrefix(pub.events[0].Name, "adxl"))
}
