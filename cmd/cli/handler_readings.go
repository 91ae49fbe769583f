package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sguter90/sensormaestro/pkg/database"
	"github.com/sguter90/sensormaestro/pkg/models"
	"go.uber.org/zap"
)

// getEnvironmentalHandler returns rs485 samples, newest first
// Query params:
//   - start: start time (RFC3339 or YYYY-MM-DD HH:MM:SS), inclusive
//   - end: end time, inclusive
//   - limit: max number of results (default: 200, max: 1000)
//   - offset: pagination offset
func (rm *RouteManager) getEnvironmentalHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseRangeQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := rm.store.QueryEnvironmental(r.Context(), q)
	if err != nil {
		rm.logger.Error("Failed to query rs485 samples", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to query rs485 samples")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// getVibrationListHandler returns adxl batch metadata without samples, newest first.
// Accepts the same query params as getEnvironmentalHandler.
func (rm *RouteManager) getVibrationListHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseRangeQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := rm.store.QueryVibration(r.Context(), q)
	if err != nil {
		rm.logger.Error("Failed to query adxl batches", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to query adxl batches")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// getVibrationHandler returns a single adxl batch including its samples
func (rm *RouteManager) getVibrationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid batch id")
		return
	}

	batch, err := rm.store.GetVibration(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "adxl batch not found")
		return
	}
	if err != nil {
		rm.logger.Error("Failed to load adxl batch", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load adxl batch")
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

// parseRangeQuery extracts and validates start, end, limit and offset
func parseRangeQuery(r *http.Request) (models.RangeQuery, error) {
	var q models.RangeQuery
	values := r.URL.Query()

	if s := values.Get("start"); s != "" {
		t, err := models.ParseTimestamp(s)
		if err != nil {
			return q, fmt.Errorf("invalid start: %s", s)
		}
		q.Start = &t
	}

	if s := values.Get("end"); s != "" {
		t, err := models.ParseTimestamp(s)
		if err != nil {
			return q, fmt.Errorf("invalid end: %s", s)
		}
		q.End = &t
	}

	if s := values.Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil {
			return q, fmt.Errorf("invalid limit: %s", s)
		}
		q.Limit = l
	}

	if s := values.Get("offset"); s != "" {
		o, err := strconv.Atoi(s)
		if err != nil {
			return q, fmt.Errorf("invalid offset: %s", s)
		}
		q.Offset = o
	}

	if err := q.Validate(); err != nil {
		return q, err
	}
	return q, nil
}
