package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sguter90/sensormaestro/pkg/models"
	"github.com/sguter90/sensormaestro/pkg/parser"
	"go.uber.org/zap"
)

// maxIngestBody bounds the size of a single ingest request
const maxIngestBody = 10 << 20

// ingestHandler stores one sample payload and broadcasts it to viewers
func (rm *RouteManager) ingestHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "No data provided")
		return
	}

	result, err := rm.ingest.Ingest(r.Context(), raw)
	if err != nil {
		var vErr *parser.ValidationError
		if errors.As(err, &vErr) {
			rm.logger.Info("Rejected invalid payload", zap.String("reason", vErr.Reason))
			writeError(w, http.StatusBadRequest, vErr.Reason)
			return
		}

		rm.logger.Error("Failed to store payload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to store data")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status":          "success",
		"message":         ingestMessage(result.Kind, result.Event.Data),
		"device_id":       result.DeviceID,
		"timestamp":       result.Timestamp,
		"records_created": 1,
	})
}

func ingestMessage(kind models.Kind, data interface{}) string {
	if adxl, ok := data.(models.ADXLData); ok {
		return fmt.Sprintf("ADXL batch stored (%d samples)", adxl.SampleCount)
	}
	if kind == models.KindEnvironmental {
		return "RS485 sample stored"
	}
	return "Data stored successfully"
}
