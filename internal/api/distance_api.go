package api

import (
	"bytes"
	"fmt"
	"net/http"

	"softone/internal/geo"
	"softone/internal/metrics"
)

// DistanceRequest is the request body for POST /api/v1/distance.
type DistanceRequest struct {
	Destination string           `json:"destino" validate:"required"`
	Device      *geo.Coordinates `json:"coords"`
}

// handleDistance resolves a travel distance estimate without touching any
// visit. A 422 means the pipeline gave up and the user must type the
// kilometers in.
func (s *HTTPServer) handleDistance(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("distance")

	var req DistanceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	est, err := s.distance.Resolve(r.Context(), req.Destination, req.Device)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

// VisitReportRequest is the request body for POST /api/v1/reports/visits.
type VisitReportRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1"`
}

// handleVisitReport exports the Completed visits among ids as an Excel
// workbook and marks them printed.
func (s *HTTPServer) handleVisitReport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("visit_report")

	var req VisitReportRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	var buf bytes.Buffer
	result, err := s.exporter.Export(r.Context(), s.lifecycle, req.IDs, &buf)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=visits_%s.xlsx", result.ReportID))
	w.Header().Set("X-Report-Exported", fmt.Sprintf("%d", result.Exported))
	w.Header().Set("X-Report-Skipped", fmt.Sprintf("%d", result.Skipped))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
