package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/sguter90/sensormaestro/pkg/cache"
	"github.com/sguter90/sensormaestro/pkg/models"
	"go.uber.org/zap"
)

// infoHandler describes the service and its endpoints
func (rm *RouteManager) infoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   serviceName,
		"timestamp": time.Now().UTC(),
		"endpoints": map[string]string{
			"ingest":        "POST /ingest",
			"health":        "GET /health",
			"websocket":     "GET /ws",
			"rs485_history": "GET /api/db/rs485",
			"adxl_history":  "GET /api/db/adxl",
			"adxl_batch":    "GET /api/db/adxl/{id}",
			"export":        "GET /api/export/{rs485|adxl}.{csv|xlsx}",
			"latest":        "GET /api/latest",
			"metrics":       "GET /api/metrics",
			"prometheus":    "GET /metrics",
			"service_info":  "GET /api",
		},
	})
}

// metricsHandler returns pipeline counters, viewer connections and process stats
func (rm *RouteManager) metricsHandler(w http.ResponseWriter, r *http.Request) {
	snapshot, err := rm.metrics.Snapshot()
	if err != nil {
		rm.logger.Error("Failed to gather metrics", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to gather metrics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"counters":    snapshot.Counters,
		"gauges":      snapshot.Gauges,
		"process":     snapshot.Process,
		"connections": rm.hub.Len(),
		"timestamp":   snapshot.Timestamp,
	})
}

// latestHandler returns the last stored sample per kind from the cache.
// ?kind=rs485|adxl narrows the result to one kind.
func (rm *RouteManager) latestHandler(w http.ResponseWriter, r *http.Request) {
	if rm.latest == nil {
		writeError(w, http.StatusNotFound, "latest sample cache is disabled")
		return
	}

	ctx := r.Context()
	if kind := r.URL.Query().Get("kind"); kind != "" {
		entry, err := rm.latest.Get(ctx, models.Kind(kind))
		if errors.Is(err, cache.ErrMiss) {
			writeError(w, http.StatusNotFound, "no cached sample for "+kind)
			return
		}
		if err != nil {
			rm.logger.Warn("Failed to read latest sample", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to read latest sample")
			return
		}
		writeJSON(w, http.StatusOK, entry)
		return
	}

	all, err := rm.latest.All(ctx)
	if err != nil {
		rm.logger.Warn("Failed to read latest samples", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read latest samples")
		return
	}
	if len(all) == 0 {
		writeError(w, http.StatusNotFound, "no cached samples")
		return
	}
	writeJSON(w, http.StatusOK, all)
}
