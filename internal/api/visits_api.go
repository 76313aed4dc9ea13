package api

import (
	"net/http"
	"strconv"

	"softone/internal/metrics"
	"softone/internal/models"
)

// CreateVisitRequest is the request body for POST /api/v1/visits.
type CreateVisitRequest struct {
	ProfessionalID int64  `json:"idPrescritor" validate:"required"`
	LocationID     *int64 `json:"idEndereco"`
	Date           string `json:"data" validate:"required"`
	Period         int    `json:"periodo"`
	Description    string `json:"descricao"`
	Product        string `json:"produto"`
	Type           int    `json:"tipo"`
	UserID         string `json:"idUsuario"`
}

// handleCreateVisit schedules a visit, falling back to the local cache when
// the remote store is unreachable. A cached fallback answers 202: the visit
// exists on this device and will be synced later.
func (s *HTTPServer) handleCreateVisit(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_visit")

	var req CreateVisitRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	entry := models.AgendaEntry{
		ProfessionalID: req.ProfessionalID,
		LocationID:     req.LocationID,
		Date:           req.Date,
		Period:         models.Period(req.Period),
		Description:    req.Description,
		Product:        req.Product,
		Type:           req.Type,
		Status:         models.StatusScheduled,
		Active:         true,
	}
	if err := entry.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The professional-location link is advisory; a failure here never
	// blocks the visit.
	if req.LocationID != nil {
		s.links.Ensure(r.Context(), req.ProfessionalID, *req.LocationID, req.UserID)
	}

	result, err := s.engine.CreateWithFallback(r.Context(), entry)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !result.Success {
		writeJSON(w, http.StatusAccepted, result)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleSyncVisits runs one reconciliation sweep over the pending records.
// POST /api/v1/visits/sync
func (s *HTTPServer) handleSyncVisits(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sync_visits")

	result, err := s.engine.Reconcile(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handlePendingVisits lists the locally cached records still waiting for a
// successful remote write. GET /api/v1/visits/pending
func (s *HTTPServer) handlePendingVisits(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("pending_visits")

	pending, err := s.engine.Pending(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pendentes": pending, "total": len(pending)})
}

// handleRemovePending drops one cached record by its key.
// DELETE /api/v1/visits/pending/{key}
func (s *HTTPServer) handleRemovePending(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("remove_pending")

	key := r.PathValue("key")
	removed, err := s.engine.Remove(r.Context(), key)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "no cached record with that key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleVerifyVisit reports whether a visit is readable from the remote
// store. GET /api/v1/visits/{id}/verify
func (s *HTTPServer) handleVerifyVisit(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("verify_visit")

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         id,
		"salvaNaApi": s.engine.Verify(r.Context(), id),
	})
}

func (s *HTTPServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid visit id")
		return 0, false
	}
	return id, true
}
