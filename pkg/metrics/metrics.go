package metrics

import (
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/shirou/gopsutil/v3/process"
)

const namespace = "sensormaestro"

// Rejection reasons of the ingest pipeline
const (
	ReasonAuth       = "auth"
	ReasonValidation = "validation"
	ReasonStorage    = "storage"
)

// Metrics owns a private prometheus registry with the pipeline's collectors
type Metrics struct {
	registry *prometheus.Registry
	started  time.Time

	ingested        *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	ingestLatency   prometheus.Histogram
	delivered       *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	deliveryLatency prometheus.Histogram
	connections     prometheus.Gauge
}

// New creates the collectors and registers them together with the Go runtime
// and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_ingested_total",
			Help:      "Samples stored and broadcast, by kind.",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_rejected_total",
			Help:      "Ingest requests rejected, by reason.",
		}, []string{"reason"}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_latency_seconds",
			Help:      "Time from receiving a payload to queueing its broadcast.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Events written to viewer connections, by event.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events not delivered to a viewer, by event and reason.",
		}, []string{"event", "reason"}),
		deliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_delivery_seconds",
			Help:      "Time spent writing one event to one viewer.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 13),
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewer_connections",
			Help:      "Currently registered viewer connections.",
		}),
	}

	m.registry.MustRegister(
		m.ingested,
		m.rejected,
		m.ingestLatency,
		m.delivered,
		m.dropped,
		m.deliveryLatency,
		m.connections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) IngestAccepted(kind string) {
	m.ingested.WithLabelValues(kind).Inc()
}

func (m *Metrics) IngestRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveIngest(d time.Duration) {
	m.ingestLatency.Observe(d.Seconds())
}

func (m *Metrics) ConnectionOpened() {
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	m.connections.Dec()
}

func (m *Metrics) Delivered(event string, took time.Duration) {
	m.delivered.WithLabelValues(event).Inc()
	m.deliveryLatency.Observe(took.Seconds())
}

func (m *Metrics) Dropped(event string, reason string) {
	m.dropped.WithLabelValues(event, reason).Inc()
}

// ProcessStats describes the server process
type ProcessStats struct {
	PID           int32   `json:"pid"`
	RSSBytes      uint64  `json:"rss_bytes"`
	CPUPercent    float64 `json:"cpu_percent"`
	Goroutines    int     `json:"goroutines"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Snapshot is the JSON view of the pipeline metrics
type Snapshot struct {
	Counters  map[string]float64 `json:"counters"`
	Gauges    map[string]float64 `json:"gauges"`
	Process   ProcessStats       `json:"process"`
	Timestamp time.Time          `json:"timestamp"`
}

// Snapshot gathers the registry and sums every pipeline counter across its labels
func (m *Metrics) Snapshot() (Snapshot, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return Snapshot{}, err
	}

	s := Snapshot{
		Counters:  make(map[string]float64),
		Gauges:    make(map[string]float64),
		Timestamp: time.Now().UTC(),
	}

	prefix := namespace + "_"
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.TrimPrefix(name, prefix)

		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			s.Counters[key] = sumCounters(mf.GetMetric())
		case dto.MetricType_GAUGE:
			s.Gauges[key] = sumGauges(mf.GetMetric())
		}
	}

	s.Process = m.processStats()
	return s, nil
}

func sumCounters(metrics []*dto.Metric) float64 {
	total := 0.0
	for _, metric := range metrics {
		total += metric.GetCounter().GetValue()
	}
	return total
}

func sumGauges(metrics []*dto.Metric) float64 {
	total := 0.0
	for _, metric := range metrics {
		total += metric.GetGauge().GetValue()
	}
	return total
}

// processStats reads RSS and CPU usage of the current process. Values the
// platform cannot provide stay zero.
func (m *Metrics) processStats() ProcessStats {
	stats := ProcessStats{
		PID:           int32(os.Getpid()),
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: time.Since(m.started).Seconds(),
	}

	p, err := process.NewProcess(stats.PID)
	if err != nil {
		return stats
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	return stats
}
