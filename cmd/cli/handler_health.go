package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// healthHandler reports store reachability together with the current row counts
func (rm *RouteManager) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := rm.store.Ping(ctx); err != nil {
		rm.logger.Warn("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "degraded",
			"message":   "database unreachable",
			"timestamp": time.Now().UTC(),
		})
		return
	}

	snapshot, err := rm.stats.Snapshot(ctx)
	if err != nil {
		rm.logger.Warn("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "degraded",
			"message":   "failed to count samples",
			"timestamp": time.Now().UTC(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"rs485_count": snapshot.RS485Count,
		"adxl_count":  snapshot.ADXLCount,
		"timestamp":   snapshot.Timestamp,
	})
}
