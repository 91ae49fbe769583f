package main

import (
	"crypto/subtle"
	"net/http"

	"github.com/sguter90/sensormaestro/pkg/api"
	"github.com/sguter90/sensormaestro/pkg/metrics"
	"go.uber.org/zap"
)

// apiKeyMiddleware rejects requests without the shared ingest key
// before the body is read
func (rm *RouteManager) apiKeyMiddleware(next http.Handler) http.Handler {
	expected := []byte(rm.cfg.APIKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := []byte(r.Header.Get(api.APIKeyHeader))
		if subtle.ConstantTimeCompare(key, expected) != 1 {
			rm.metrics.IngestRejected(metrics.ReasonAuth)
			rm.logger.Warn("Rejected ingest request with invalid API key", zap.String("remote_addr", r.RemoteAddr))
			writeError(w, http.StatusUnauthorized, "Invalid API Key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
