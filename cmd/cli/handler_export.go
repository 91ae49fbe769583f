package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sguter90/sensormaestro/pkg/export"
	"go.uber.org/zap"
)

// exportHandler streams a time range of one sample kind as CSV or XLSX.
// Limit and offset are ignored; oversized ranges are rejected with 413.
func (rm *RouteManager) exportHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	kind, err := export.ParseKind(vars["kind"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	format, err := export.ParseFormat(vars["format"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	q, err := parseRangeQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if _, err := rm.exporter.Check(ctx, kind, q); err != nil {
		if errors.Is(err, export.ErrExportTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		rm.logger.Error("Failed to prepare export", zap.String("kind", string(kind)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to prepare export")
		return
	}

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Filename(kind, format)))
	w.WriteHeader(http.StatusOK)

	rows, err := rm.exporter.Write(ctx, w, kind, format, q)
	if err != nil {
		// headers are already sent
		rm.logger.Error("Export aborted", zap.String("kind", string(kind)), zap.Int64("rows", rows), zap.Error(err))
		return
	}

	rm.logger.Info("Export finished",
		zap.String("kind", string(kind)),
		zap.String("format", string(format)),
		zap.Int64("rows", rows),
	)
}
