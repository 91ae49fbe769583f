package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sguter90/sensormaestro/pkg/cache"
	"github.com/sguter90/sensormaestro/pkg/config"
	"github.com/sguter90/sensormaestro/pkg/export"
	"github.com/sguter90/sensormaestro/pkg/hub"
	"github.com/sguter90/sensormaestro/pkg/ingest"
	"github.com/sguter90/sensormaestro/pkg/metrics"
	"github.com/sguter90/sensormaestro/pkg/models"
	"github.com/sguter90/sensormaestro/pkg/stats"
	"go.uber.org/zap"
)

// SampleStore is everything the HTTP surface needs from the store
type SampleStore interface {
	ingest.Store
	export.Store
	stats.Counter
	Ping(ctx context.Context) error
	QueryEnvironmental(ctx context.Context, q models.RangeQuery) ([]models.EnvironmentalSample, error)
	QueryVibration(ctx context.Context, q models.RangeQuery) ([]models.VibrationSummary, error)
	GetVibration(ctx context.Context, id int64) (*models.VibrationBatch, error)
}

// LatestReader serves cached latest samples
type LatestReader interface {
	Get(ctx context.Context, kind models.Kind) (*cache.Latest, error)
	All(ctx context.Context) (map[models.Kind]*cache.Latest, error)
}

// Dependencies are the components wired into the HTTP surface
type Dependencies struct {
	Config  *config.Config
	Store   SampleStore
	Hub     *hub.Hub
	Ingest  *ingest.Service
	Metrics *metrics.Metrics
	Latest  LatestReader
	Logger  *zap.Logger
}

// RouteManager handles all API routes
type RouteManager struct {
	cfg      *config.Config
	store    SampleStore
	hub      *hub.Hub
	ingest   *ingest.Service
	stats    *stats.Aggregator
	exporter *export.Exporter
	metrics  *metrics.Metrics
	latest   LatestReader
	logger   *zap.Logger
	upgrader websocket.Upgrader
	Router   *mux.Router
}

// NewRouteManager creates a new RouteManager instance
func NewRouteManager(deps Dependencies) *RouteManager {
	rm := &RouteManager{
		cfg:      deps.Config,
		store:    deps.Store,
		hub:      deps.Hub,
		ingest:   deps.Ingest,
		stats:    stats.NewAggregator(deps.Store),
		exporter: export.NewExporter(deps.Store, deps.Config.ExportMaxRows),
		metrics:  deps.Metrics,
		latest:   deps.Latest,
		logger:   deps.Logger,
		Router:   mux.NewRouter(),
	}
	if rm.logger == nil {
		rm.logger = zap.NewNop()
	}
	rm.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     rm.checkOrigin,
	}
	return rm
}

// Setup configures all API routes
func (rm *RouteManager) Setup() {
	r := rm.Router
	r.Use(rm.requestLogMiddleware)
	r.Use(rm.corsMiddleware)

	// Global OPTIONS handler - catches all preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.HandleFunc("/health", rm.healthHandler).Methods("GET")
	r.Handle("/ingest", rm.apiKeyMiddleware(http.HandlerFunc(rm.ingestHandler))).Methods("POST")
	r.HandleFunc("/ws", rm.websocketHandler).Methods("GET")
	r.Handle("/metrics", rm.metrics.Handler()).Methods("GET")
	r.HandleFunc("/api", rm.infoHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	rm.setupAPIRoutes(api)
}

// setupAPIRoutes configures the read side of the API
func (rm *RouteManager) setupAPIRoutes(api *mux.Router) {
	api.HandleFunc("/metrics", rm.metricsHandler).Methods("GET")
	api.HandleFunc("/latest", rm.latestHandler).Methods("GET")

	// History
	api.HandleFunc("/db/rs485", rm.getEnvironmentalHandler).Methods("GET")
	api.HandleFunc("/db/adxl", rm.getVibrationListHandler).Methods("GET")
	api.HandleFunc("/db/adxl/{id:[0-9]+}", rm.getVibrationHandler).Methods("GET")

	// Export
	api.HandleFunc("/export/{kind:[a-z0-9]+}.{format:[a-z]+}", rm.exportHandler).Methods("GET")
}

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the common error body
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"status":  "error",
		"message": message,
	})
}
