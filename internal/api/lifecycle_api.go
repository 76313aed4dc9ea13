package api

import (
	"net/http"

	"softone/internal/geo"
	"softone/internal/metrics"
	"softone/internal/models"
	"softone/internal/visit"
)

// handleConfirm moves a Scheduled visit to Confirmed.
// POST /api/v1/visits/{id}/confirm
func (s *HTTPServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("confirm_visit")

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	entry, err := s.lifecycle.Confirm(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// CompleteVisitRequest is the request body for POST /api/v1/visits/{id}/complete.
type CompleteVisitRequest struct {
	Device      *geo.Coordinates `json:"coords"`
	Destination string           `json:"destino"`
	Override    bool             `json:"override"`
}

// handleComplete moves a Confirmed visit to Completed. Without a nearby
// device position the caller gets a 409 and must retry with override set,
// carrying the user's explicit consent.
func (s *HTTPServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("complete_visit")

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req CompleteVisitRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	entry, err := s.lifecycle.Complete(r.Context(), id, visit.CompleteOptions{
		Device:             req.Device,
		DestinationAddress: req.Destination,
		Override:           req.Override,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ConfirmedRequest carries the user's consent for destructive actions.
type ConfirmedRequest struct {
	Confirmed bool `json:"confirmado"`
}

// handleCancel moves a Confirmed visit to Canceled.
// POST /api/v1/visits/{id}/cancel
func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_visit")

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req ConfirmedRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	entry, err := s.lifecycle.Cancel(r.Context(), id, req.Confirmed)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleFinalize moves a Completed visit to Finalized.
// POST /api/v1/visits/{id}/finalize
func (s *HTTPServer) handleFinalize(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("finalize_visit")

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req ConfirmedRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	entry, err := s.lifecycle.Finalize(r.Context(), id, req.Confirmed)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// PostponeVisitRequest is the request body for POST /api/v1/visits/{id}/postpone.
type PostponeVisitRequest struct {
	Date   string `json:"data" validate:"required"`
	Period int    `json:"periodo"`
}

// handlePostpone rewrites the visit's date and period and sends it back to
// Scheduled.
func (s *HTTPServer) handlePostpone(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("postpone_visit")

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req PostponeVisitRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	entry, err := s.lifecycle.Postpone(r.Context(), id, req.Date, models.Period(req.Period))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleRecover resets a visit stuck on an unknown status code back to
// Scheduled. POST /api/v1/visits/{id}/recover
func (s *HTTPServer) handleRecover(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("recover_visit")

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	entry, err := s.lifecycle.Recover(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// NavigateRequest is the request body for POST /api/v1/visits/{id}/navigate.
type NavigateRequest struct {
	Destination string           `json:"destino" validate:"required"`
	UserID      string           `json:"idUsuario"`
	Device      *geo.Coordinates `json:"coords"`
	ManualKM    float64          `json:"distanciaKm"`
}

// handleNavigate registers the route for a visit and implicitly confirms a
// Scheduled one. When no distance can be resolved the caller gets a 422 and
// retries with distanciaKm filled in by the user.
func (s *HTTPServer) handleNavigate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("navigate_visit")

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req NavigateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	route, err := s.lifecycle.StartNavigation(r.Context(), id, req.Destination, req.UserID, req.Device, req.ManualKM)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, route)
}
